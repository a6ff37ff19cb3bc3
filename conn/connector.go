package conn

import (
	"math"
	"sort"
)

// Connection is one realized synapse, a fixed-layout record in its
// (thread, synapse type) bucket. The bucket index is the LCID that Target
// descriptors refer to. No stored connection ever carries an unresolved
// weight or delay.
type Connection struct {
	Source     GlobalID
	Target     GlobalID
	Weight     float64
	DelaySteps Delay
	Label      int64
	Receptor   ReceptorTag
	disabled   bool
	plastic    PlasticityState
}

// connectorBucket is the authoritative store for one (thread, synapse type)
// pair. Written only by the owning thread during setup/restructuring,
// read-only during simulation.
type connectorBucket struct {
	synID SynapseTypeID
	conns []Connection
}

func newConnectorBucket(synID SynapseTypeID) *connectorBucket {
	return &connectorBucket{synID: synID}
}

// add appends a connection and returns its LCID.
func (b *connectorBucket) add(c Connection) int {
	if c.DelaySteps < 1 || math.IsNaN(c.Weight) {
		panic("connectorBucket.add: unresolved weight or delay")
	}
	b.conns = append(b.conns, c)
	return len(b.conns) - 1
}

func (b *connectorBucket) at(lcid int) *Connection {
	if lcid < 0 || lcid >= len(b.conns) {
		panic("connectorBucket.at: lcid out of range")
	}
	return &b.conns[lcid]
}

func (b *connectorBucket) len() int { return len(b.conns) }

// active counts non-disabled connections.
func (b *connectorBucket) active() int {
	n := 0
	for i := range b.conns {
		if !b.conns[i].disabled {
			n++
		}
	}
	return n
}

// disable marks the first live connection matching (source, target) and
// reports whether one was found. LCIDs stay stable; compaction happens in
// restructure.
func (b *connectorBucket) disable(source, target GlobalID) bool {
	for i := range b.conns {
		c := &b.conns[i]
		if !c.disabled && c.Source == source && c.Target == target {
			c.disabled = true
			return true
		}
	}
	return false
}

// sortPerm returns the permutation that orders connections by
// (source, delay, target), a total order so repeated sorts are stable.
// perm[newLCID] = oldLCID.
func (b *connectorBucket) sortPerm() []int {
	perm := make([]int, len(b.conns))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(i, j int) bool {
		a, c := &b.conns[perm[i]], &b.conns[perm[j]]
		if a.Source != c.Source {
			return a.Source < c.Source
		}
		if a.DelaySteps != c.DelaySteps {
			return a.DelaySteps < c.DelaySteps
		}
		return a.Target < c.Target
	})
	return perm
}

// applyPerm reorders the bucket in place with perm[newLCID] = oldLCID.
func (b *connectorBucket) applyPerm(perm []int) {
	out := make([]Connection, len(b.conns))
	for newLCID, oldLCID := range perm {
		out[newLCID] = b.conns[oldLCID]
	}
	b.conns = out
}

// compact drops disabled connections, returning the kept records.
func (b *connectorBucket) compact() []Connection {
	kept := b.conns[:0]
	for i := range b.conns {
		if !b.conns[i].disabled {
			kept = append(kept, b.conns[i])
		}
	}
	b.conns = kept
	return b.conns
}
