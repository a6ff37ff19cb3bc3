package conn

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Config constructs a ConnectionManager. One manager exists per rank; there
// are no process-wide singletons — the simulation context owns the value and
// passes it to every operation.
type Config struct {
	Rank       Rank
	NumRanks   int
	NumThreads int
	Lookup     NodeLookup
	Models     *SynapseModelCatalog
	// ResolutionMS is the simulation step in ms. Zero means 0.1.
	ResolutionMS float64
	// KeepSourceTable retains the staging table after resolution for later
	// structural queries instead of discarding its storage.
	KeepSourceTable bool
	// MinDelayMS/MaxDelayMS pin the legal delay range. Zero means inferred
	// from the realized connections at calibration.
	MinDelayMS float64
	MaxDelayMS float64
	Seed       int64
}

// ConnectionManager owns this rank's connection storage, the staging and
// routing tables, delay bookkeeping, and the runtime send entry points. All
// operations are synchronous with respect to their calling thread; exclusivity
// comes from the static thread partition, not locks.
type ConnectionManager struct {
	rank         Rank
	numRanks     int
	numThreads   int
	lookup       NodeLookup
	models       *SynapseModelCatalog
	resolutionMS float64
	keepSources  bool

	// buckets[tid][synID] is the authoritative connection store for the
	// (thread, synapse type) pair hosting the target node.
	buckets     [][]*connectorBucket
	sourceTable *SourceTable
	targetTable *TargetTable
	deviceTable *TargetTableDevices

	delayCheckers []DelayChecker
	// counts[tid][synID] counts live connections per bucket.
	counts [][]uint64

	minDelay               Delay
	maxDelay               Delay
	userSetExtrema         bool
	haveConnectionsChanged bool
	resolutionStarted      bool

	rng             *PartitionedRNG
	ruleInvocations int

	deliveries []deliveryQueue
}

// NewConnectionManager builds the per-rank connection subsystem.
func NewConnectionManager(cfg Config) (*ConnectionManager, error) {
	if cfg.NumRanks < 1 || cfg.NumThreads < 1 {
		return nil, fmt.Errorf("need at least one rank and one thread: %w", ErrBadSpec)
	}
	if cfg.Rank < 0 || int(cfg.Rank) >= cfg.NumRanks {
		return nil, fmt.Errorf("rank %d outside [0,%d): %w", cfg.Rank, cfg.NumRanks, ErrBadSpec)
	}
	if cfg.Lookup == nil {
		return nil, fmt.Errorf("nil node lookup: %w", ErrBadSpec)
	}
	if cfg.Models == nil {
		cfg.Models = NewSynapseModelCatalog()
	}
	if cfg.ResolutionMS == 0 {
		cfg.ResolutionMS = 0.1
	}
	cm := &ConnectionManager{
		rank:          cfg.Rank,
		numRanks:      cfg.NumRanks,
		numThreads:    cfg.NumThreads,
		lookup:        cfg.Lookup,
		models:        cfg.Models,
		resolutionMS:  cfg.ResolutionMS,
		keepSources:   cfg.KeepSourceTable,
		buckets:       make([][]*connectorBucket, cfg.NumThreads),
		sourceTable:   NewSourceTable(cfg.NumThreads, cfg.Models.NumModels()),
		targetTable:   NewTargetTable(cfg.NumThreads),
		deviceTable:   NewTargetTableDevices(cfg.NumThreads),
		delayCheckers: make([]DelayChecker, cfg.NumThreads),
		counts:        make([][]uint64, cfg.NumThreads),
		rng:           NewPartitionedRNG(cfg.Seed),
		deliveries:    make([]deliveryQueue, cfg.NumThreads),
	}
	if cfg.MinDelayMS > 0 || cfg.MaxDelayMS > 0 {
		if cfg.MinDelayMS <= 0 || cfg.MaxDelayMS <= 0 {
			return nil, fmt.Errorf("min_delay and max_delay must be pinned together: %w", ErrBadSpec)
		}
		cm.userSetExtrema = true
		minSteps := cm.delaySteps(cfg.MinDelayMS)
		maxSteps := cm.delaySteps(cfg.MaxDelayMS)
		if minSteps > maxSteps {
			return nil, fmt.Errorf("min_delay %g ms above max_delay %g ms: %w", cfg.MinDelayMS, cfg.MaxDelayMS, ErrBadSpec)
		}
		for t := range cm.delayCheckers {
			cm.delayCheckers[t].PinExtrema(minSteps, maxSteps)
		}
		cm.minDelay, cm.maxDelay = minSteps, maxSteps
	} else {
		cm.minDelay, cm.maxDelay = 1, 1
	}
	return cm, nil
}

// Rank returns the rank this manager belongs to.
func (cm *ConnectionManager) Rank() Rank { return cm.rank }

// NumThreads returns the worker-thread count of this rank.
func (cm *ConnectionManager) NumThreads() int { return cm.numThreads }

// Models exposes the synapse-type catalog.
func (cm *ConnectionManager) Models() *SynapseModelCatalog { return cm.models }

func (cm *ConnectionManager) delaySteps(ms float64) Delay {
	return Delay(math.Round(ms / cm.resolutionMS))
}

func (cm *ConnectionManager) delayMS(d Delay) float64 {
	return float64(d) * cm.resolutionMS
}

// bucket returns the store for (tid, synID), creating it on first use.
func (cm *ConnectionManager) bucket(tid ThreadID, synID SynapseTypeID) *connectorBucket {
	row := cm.buckets[tid]
	for len(row) <= int(synID) {
		row = append(row, nil)
	}
	if row[int(synID)] == nil {
		row[int(synID)] = newConnectorBucket(synID)
	}
	cm.buckets[tid] = row
	for len(cm.counts[tid]) <= int(synID) {
		cm.counts[tid] = append(cm.counts[tid], 0)
	}
	cm.sourceTable.growSynTypes(int(synID) + 1)
	return row[int(synID)]
}

// Connect validates the rule and synapse specs, instantiates the matching
// ConnBuilder, and drives it to completion. Configuration errors abort before
// any connection is committed for this call.
func (cm *ConnectionManager) Connect(sources, targets []GlobalID, cs ConnSpec, ss SynSpec) error {
	if len(sources) == 0 || len(targets) == 0 {
		return fmt.Errorf("connect: %w", ErrEmptyNodeSet)
	}
	factory, ok := ruleFactories[cs.Rule]
	if !ok {
		return fmt.Errorf("connect: %w %q", ErrUnknownRule, cs.Rule)
	}
	builder, err := factory(cm, sources, targets, cs, ss)
	if err != nil {
		return fmt.Errorf("connect rule %s: %w", cs.Rule, err)
	}
	cm.ruleInvocations++
	logrus.Debugf("rank %d: connect rule=%s sources=%d targets=%d", cm.rank, cs.Rule, len(sources), len(targets))
	return builder.Connect()
}

// ConnectOne is the single-pair primitive: connect source sgid to the target
// node hosted on targetTID using synapse type synID. Pass the NaN sentinels
// (UnsetWeight/UnsetDelayMS) to fall back to the model defaults; no
// connection is ever stored with an unresolved value.
func (cm *ConnectionManager) ConnectOne(sgid GlobalID, target Node, targetTID ThreadID, synID SynapseTypeID, delayMS, weight float64) error {
	return cm.connectPair(sgid, target, targetTID, synID, delayMS, weight, 0, 0)
}

// connectPair dispatches to one of three strategies based on whether source
// and/or target have network proxies.
func (cm *ConnectionManager) connectPair(sgid GlobalID, target Node, tid ThreadID, synID SynapseTypeID, delayMS, weight float64, label int64, receptor int) error {
	model := cm.models.Model(synID)
	if math.IsNaN(weight) {
		weight = model.DefaultWeight
	}
	if math.IsNaN(delayMS) {
		delayMS = model.DefaultDelayMS
	}
	steps := cm.delaySteps(delayMS)
	dc := &cm.delayCheckers[tid]
	if err := dc.EnsureValid(steps); err != nil {
		return fmt.Errorf("connect %d->%d: %w", sgid, target.ID(), err)
	}

	tag, err := target.HandlesTest(model.EventKind, receptor)
	if err != nil {
		return fmt.Errorf("connect %d->%d: %w", sgid, target.ID(), err)
	}

	source := cm.lookup.Node(sgid)
	c := Connection{
		Source:     sgid,
		Target:     target.ID(),
		Weight:     weight,
		DelaySteps: steps,
		Label:      label,
		Receptor:   tag,
	}
	if model.NewState != nil {
		c.plastic = model.NewState()
	}

	if cm.sourceTable.Discarded() {
		// Post-resolution structural change: restage every stored connection
		// so lane indices stay aligned with the buckets; the caller must
		// restructure and re-resolve before the next run.
		cm.rebuildSourceTable()
	}

	b := cm.bucket(tid, synID)
	switch {
	case !target.HasProxies() && source != nil && source.HasProxies():
		cm.connectToDevice(b, tid, synID, c)
	case source != nil && !source.HasProxies():
		cm.connectFromDevice(b, tid, synID, c)
	default:
		cm.connectProxied(b, tid, synID, c)
	}
	dc.Record(steps)
	cm.counts[tid][synID]++
	cm.haveConnectionsChanged = true
	return nil
}

// connectProxied stages a source reference for the distributed resolution
// protocol; both endpoints have proxies.
func (cm *ConnectionManager) connectProxied(b *connectorBucket, tid ThreadID, synID SynapseTypeID, c Connection) {
	lcid := b.add(c)
	if st := cm.sourceTable.Add(tid, synID, c.Source); st != lcid {
		panic(fmt.Sprintf("ConnectionManager.connectProxied: bucket/source index drift (%d vs %d)", lcid, st))
	}
}

// connectToDevice wires a proxied neuron to a local device directly; devices
// have no remote proxy, so no staging entry is needed.
func (cm *ConnectionManager) connectToDevice(b *connectorBucket, tid ThreadID, synID SynapseTypeID, c Connection) {
	lcid := b.add(c)
	cm.sourceTable.AddProcessed(tid, synID, c.Source)
	cm.deviceTable.RegisterToDevice(tid, c.Source, synID, lcid)
}

// connectFromDevice wires a local device to its target directly.
func (cm *ConnectionManager) connectFromDevice(b *connectorBucket, tid ThreadID, synID SynapseTypeID, c Connection) {
	lcid := b.add(c)
	cm.sourceTable.AddProcessed(tid, synID, c.Source)
	cm.deviceTable.RegisterFromDevice(tid, c.Source, synID, lcid)
}

// rebuildSourceTable restages every stored connection from the buckets,
// keeping lane indices aligned with LCIDs. Device connections and disabled
// records restage as resolved placeholders.
func (cm *ConnectionManager) rebuildSourceTable() {
	cm.sourceTable = NewSourceTable(cm.numThreads, cm.models.NumModels())
	for tid := range cm.buckets {
		for synIdx, b := range cm.buckets[tid] {
			if b == nil {
				continue
			}
			synID := SynapseTypeID(synIdx)
			cm.sourceTable.growSynTypes(synIdx + 1)
			for i := range b.conns {
				c := &b.conns[i]
				source := cm.lookup.Node(c.Source)
				target := cm.lookup.Node(c.Target)
				device := (target != nil && !target.HasProxies() && source != nil && source.HasProxies()) ||
					(source != nil && !source.HasProxies())
				if c.disabled || device {
					cm.sourceTable.AddProcessed(ThreadID(tid), synID, c.Source)
				} else {
					cm.sourceTable.Add(ThreadID(tid), synID, c.Source)
				}
			}
		}
	}
}

// Disconnect removes the connection (sgid -> target) of type synID on thread
// tid. A missing connection is a silent no-op. The LCID stays occupied until
// RestructureConnectionTables compacts the bucket.
func (cm *ConnectionManager) Disconnect(target Node, sgid GlobalID, tid ThreadID, synID SynapseTypeID) {
	if int(synID) >= len(cm.buckets[tid]) || cm.buckets[tid][synID] == nil {
		return
	}
	if cm.buckets[tid][synID].disable(sgid, target.ID()) {
		cm.counts[tid][synID]--
		cm.haveConnectionsChanged = true
	}
}

// NumConnections returns the number of live connections on this rank.
func (cm *ConnectionManager) NumConnections() uint64 {
	var n uint64
	for t := range cm.counts {
		for _, c := range cm.counts[t] {
			n += c
		}
	}
	return n
}

// NumConnectionsOfType returns the live-connection count for one synapse type.
func (cm *ConnectionManager) NumConnectionsOfType(synID SynapseTypeID) uint64 {
	var n uint64
	for t := range cm.counts {
		if int(synID) < len(cm.counts[t]) {
			n += cm.counts[t][synID]
		}
	}
	return n
}

// MinDelay returns the calibrated minimum delay in steps.
func (cm *ConnectionManager) MinDelay() Delay { return cm.minDelay }

// MaxDelay returns the calibrated maximum delay in steps.
func (cm *ConnectionManager) MaxDelay() Delay { return cm.maxDelay }

// UserSetDelayExtrema reports whether the extrema were pinned by the user
// rather than inferred from connections.
func (cm *ConnectionManager) UserSetDelayExtrema() bool { return cm.userSetExtrema }

// HaveConnectionsChanged reports the topology-changed flag.
func (cm *ConnectionManager) HaveConnectionsChanged() bool { return cm.haveConnectionsChanged }

// SetHaveConnectionsChanged overrides the topology-changed flag.
func (cm *ConnectionManager) SetHaveConnectionsChanged(changed bool) {
	cm.haveConnectionsChanged = changed
}

// Calibrate recomputes the global delay extrema from the per-thread checkers
// when the topology-changed flag is set, and forwards a time-representation
// change to the synapse models and all stored delays. The delay invariant
// min <= d <= max holds for every realized connection from here until the
// next topology change.
func (cm *ConnectionManager) Calibrate(tc TimeConverter) {
	cm.models.Recalibrate(tc)
	if !tc.Identity() {
		for tid := range cm.buckets {
			for _, b := range cm.buckets[tid] {
				if b == nil {
					continue
				}
				for i := range b.conns {
					b.conns[i].DelaySteps = tc.ConvertDelay(b.conns[i].DelaySteps)
				}
			}
			cm.delayCheckers[tid].Convert(tc)
		}
		if cm.userSetExtrema {
			cm.minDelay = tc.ConvertDelay(cm.minDelay)
			cm.maxDelay = tc.ConvertDelay(cm.maxDelay)
		}
		cm.resolutionMS = tc.NewResolutionMS
		cm.haveConnectionsChanged = true
	}
	if !cm.haveConnectionsChanged {
		return
	}
	cm.updateDelayExtrema()
	cm.haveConnectionsChanged = false
	logrus.Debugf("rank %d: calibrated delay extrema [%d, %d] steps", cm.rank, cm.minDelay, cm.maxDelay)
}

func (cm *ConnectionManager) updateDelayExtrema() {
	if cm.userSetExtrema {
		return // pinned extrema stand; EnsureValid kept connects inside them
	}
	var min, max Delay
	seen := false
	for t := range cm.delayCheckers {
		lo, hi, ok := cm.delayCheckers[t].Extrema()
		if !ok {
			continue
		}
		if !seen {
			min, max, seen = lo, hi, true
			continue
		}
		if lo < min {
			min = lo
		}
		if hi > max {
			max = hi
		}
	}
	if !seen {
		min, max = 1, 1
	}
	cm.minDelay, cm.maxDelay = min, max
}

// SortConnections reorders each (thread, synapse type) bucket by
// (source, delay, target) for delivery-time locality, keeping the source
// table and device references aligned. It runs only before Target
// descriptors are published; afterwards it is a no-op, so the published
// (thread, type, index) mapping never changes. Idempotent.
func (cm *ConnectionManager) SortConnections() {
	if cm.resolutionStarted {
		logrus.Debugf("rank %d: sort skipped, target descriptors already published", cm.rank)
		return
	}
	for tid := range cm.buckets {
		for _, b := range cm.buckets[tid] {
			if b == nil || b.len() == 0 {
				continue
			}
			perm := b.sortPerm()
			b.applyPerm(perm)
			cm.sourceTable.applyPerm(ThreadID(tid), b.synID, perm)
			cm.remapDeviceRefs(ThreadID(tid), b.synID, perm)
		}
	}
}

// remapDeviceRefs rewrites device-table LCIDs after a bucket permutation;
// perm[newLCID] = oldLCID.
func (cm *ConnectionManager) remapDeviceRefs(tid ThreadID, synID SynapseTypeID, perm []int) {
	inv := make([]int, len(perm))
	for newLCID, oldLCID := range perm {
		inv[oldLCID] = newLCID
	}
	for _, refs := range cm.deviceTable.toDevice[tid] {
		for i := range refs {
			if refs[i].synID == synID {
				refs[i].lcid = inv[refs[i].lcid]
			}
		}
	}
	for _, refs := range cm.deviceTable.fromDevice[tid] {
		for i := range refs {
			if refs[i].synID == synID {
				refs[i].lcid = inv[refs[i].lcid]
			}
		}
	}
}

// RestructureConnectionTables rebuilds the staging, routing and device tables
// from the authoritative connection storage, compacting disabled records.
// Invoked after any topology change outside the initial build; the resolution
// protocol must be re-driven afterwards.
func (cm *ConnectionManager) RestructureConnectionTables() {
	cm.sourceTable = NewSourceTable(cm.numThreads, cm.models.NumModels())
	for tid := 0; tid < cm.numThreads; tid++ {
		cm.targetTable.Clear(ThreadID(tid))
		cm.deviceTable.Clear(ThreadID(tid))
	}
	for tid := range cm.buckets {
		for synIdx, b := range cm.buckets[tid] {
			if b == nil {
				continue
			}
			synID := SynapseTypeID(synIdx)
			cm.sourceTable.growSynTypes(synIdx + 1)
			kept := b.compact()
			cm.counts[tid][synIdx] = uint64(len(kept))
			for lcid := range kept {
				c := &kept[lcid]
				source := cm.lookup.Node(c.Source)
				target := cm.lookup.Node(c.Target)
				switch {
				case target != nil && !target.HasProxies() && source != nil && source.HasProxies():
					cm.sourceTable.AddProcessed(ThreadID(tid), synID, c.Source)
					cm.deviceTable.RegisterToDevice(ThreadID(tid), c.Source, synID, lcid)
				case source != nil && !source.HasProxies():
					cm.sourceTable.AddProcessed(ThreadID(tid), synID, c.Source)
					cm.deviceTable.RegisterFromDevice(ThreadID(tid), c.Source, synID, lcid)
				default:
					cm.sourceTable.Add(ThreadID(tid), synID, c.Source)
				}
			}
		}
	}
	cm.resolutionStarted = false
	cm.haveConnectionsChanged = true
	logrus.Debugf("rank %d: connection tables restructured", cm.rank)
}

// DeleteConnections drops every connection and table on this rank.
func (cm *ConnectionManager) DeleteConnections() {
	cm.buckets = make([][]*connectorBucket, cm.numThreads)
	cm.counts = make([][]uint64, cm.numThreads)
	cm.sourceTable = NewSourceTable(cm.numThreads, cm.models.NumModels())
	cm.targetTable = NewTargetTable(cm.numThreads)
	cm.deviceTable = NewTargetTableDevices(cm.numThreads)
	for t := range cm.delayCheckers {
		cm.delayCheckers[t].Reset()
	}
	cm.deliveries = make([]deliveryQueue, cm.numThreads)
	cm.resolutionStarted = false
	cm.haveConnectionsChanged = true
}

// Finalize tears the manager down explicitly.
func (cm *ConnectionManager) Finalize() {
	cm.DeleteConnections()
	cm.haveConnectionsChanged = false
}

// DelayChecker returns the checker owned by one thread.
func (cm *ConnectionManager) DelayChecker(tid ThreadID) *DelayChecker {
	return &cm.delayCheckers[tid]
}

// TriggerUpdateWeight broadcasts a modulator spike batch ending at time t
// (ms) to every connection whose synapse type is registered with the
// modulator node.
func (cm *ConnectionManager) TriggerUpdateWeight(modulator GlobalID, spikes []*SpikeEvent, t float64) {
	ids := cm.models.ModulatedBy(modulator)
	if len(ids) == 0 {
		return
	}
	for tid := range cm.buckets {
		for _, synID := range ids {
			if int(synID) >= len(cm.buckets[tid]) || cm.buckets[tid][synID] == nil {
				continue
			}
			b := cm.buckets[tid][synID]
			for i := range b.conns {
				c := &b.conns[i]
				if c.disabled || c.plastic == nil {
					continue
				}
				c.Weight = c.plastic.OnTrigger(c.Weight, spikes, t)
			}
		}
	}
}
