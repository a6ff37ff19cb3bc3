package conn

import "fmt"

// DelayChecker records every synaptic delay seen by one thread and reduces
// them to a thread-local min/max. Mutated only during connect/calibrate
// phases, never on the delivery path.
type DelayChecker struct {
	minDelay Delay
	maxDelay Delay
	seenAny  bool

	// user-pinned extrema; zero means not pinned
	userMin Delay
	userMax Delay
}

// NewDelayChecker returns a checker with no recorded delays.
func NewDelayChecker() DelayChecker {
	return DelayChecker{}
}

// PinExtrema fixes the legal delay range. Connects outside it fail.
func (dc *DelayChecker) PinExtrema(min, max Delay) {
	dc.userMin = min
	dc.userMax = max
}

// UserSet reports whether the extrema were pinned by the user.
func (dc *DelayChecker) UserSet() bool { return dc.userMin > 0 || dc.userMax > 0 }

// EnsureValid rejects non-positive delays and delays outside the pinned range.
func (dc *DelayChecker) EnsureValid(d Delay) error {
	if d < 1 {
		return fmt.Errorf("delay %d steps: %w", d, ErrBadDelay)
	}
	if dc.userMin > 0 && d < dc.userMin {
		return fmt.Errorf("delay %d steps below pinned minimum %d: %w", d, dc.userMin, ErrBadDelay)
	}
	if dc.userMax > 0 && d > dc.userMax {
		return fmt.Errorf("delay %d steps above pinned maximum %d: %w", d, dc.userMax, ErrBadDelay)
	}
	return nil
}

// Record notes an accepted delay.
func (dc *DelayChecker) Record(d Delay) {
	if !dc.seenAny {
		dc.minDelay, dc.maxDelay = d, d
		dc.seenAny = true
		return
	}
	if d < dc.minDelay {
		dc.minDelay = d
	}
	if d > dc.maxDelay {
		dc.maxDelay = d
	}
}

// Extrema returns the recorded bounds; ok is false when nothing was recorded.
func (dc *DelayChecker) Extrema() (min, max Delay, ok bool) {
	return dc.minDelay, dc.maxDelay, dc.seenAny
}

// Convert re-expresses the recorded and pinned bounds in a new time
// representation.
func (dc *DelayChecker) Convert(tc TimeConverter) {
	if tc.Identity() {
		return
	}
	if dc.userMin > 0 {
		dc.userMin = tc.ConvertDelay(dc.userMin)
		dc.userMax = tc.ConvertDelay(dc.userMax)
	}
	if !dc.seenAny {
		return
	}
	dc.minDelay = tc.ConvertDelay(dc.minDelay)
	dc.maxDelay = tc.ConvertDelay(dc.maxDelay)
}

// Reset forgets all recorded delays but keeps pinned extrema.
func (dc *DelayChecker) Reset() {
	dc.minDelay, dc.maxDelay, dc.seenAny = 0, 0, false
}
