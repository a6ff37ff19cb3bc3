package conn

import "math"

// Identity types
type GlobalID uint64
type SynapseTypeID int
type Rank int
type ThreadID int

// Delay is a synaptic delay in discrete simulation steps.
type Delay int64

// Tick is a point in simulation time, in steps.
type Tick int64

// InvalidGlobalID marks an unset node reference.
const InvalidGlobalID GlobalID = 0

// InvalidDelay marks a delay that has not been resolved yet. No stored
// connection may carry it; sentinel resolution happens at connect time.
const InvalidDelay Delay = -1

// UnsetWeight and UnsetDelayMS are the NaN sentinels for omitted weight/delay
// arguments. They are replaced by the synapse model defaults before storage.
func UnsetWeight() float64 { return math.NaN() }
func UnsetDelayMS() float64 { return math.NaN() }

// Target is a routing descriptor: where an event from some local source node
// must be delivered. Append-only during resolution, read-only afterwards.
type Target struct {
	Rank        Rank
	Thread      ThreadID
	SynapseType SynapseTypeID
	LCID        int // local connection index in the (thread, synapse type) bucket
}

// TargetData is one unit of the resolution protocol: the pending source
// reference held on the target-hosting rank, paired with the Target
// descriptor that must end up on the source-hosting rank.
type TargetData struct {
	SourceLID int      // local id of the source node on its host rank
	SourceTID ThreadID // thread hosting the source node on its host rank
	Target    Target
}

// TimeConverter translates delays between two time representations.
// Passed to Calibrate when the simulation resolution changes.
type TimeConverter struct {
	OldResolutionMS float64
	NewResolutionMS float64
}

// IdentityTimeConverter returns a converter that leaves delays unchanged.
func IdentityTimeConverter(resolutionMS float64) TimeConverter {
	return TimeConverter{OldResolutionMS: resolutionMS, NewResolutionMS: resolutionMS}
}

// Identity reports whether the converter changes nothing.
func (tc TimeConverter) Identity() bool {
	return tc.OldResolutionMS == tc.NewResolutionMS
}

// ConvertDelay re-expresses a step count from the old resolution in the new
// one, never below one step.
func (tc TimeConverter) ConvertDelay(d Delay) Delay {
	if tc.Identity() {
		return d
	}
	ms := float64(d) * tc.OldResolutionMS
	steps := Delay(math.Round(ms / tc.NewResolutionMS))
	if steps < 1 {
		steps = 1
	}
	return steps
}
