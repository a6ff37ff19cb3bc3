package conn

import "fmt"

// sourceEntry is one pending cross-process resolution record: the source
// reference held on the rank hosting the target, until the owning rank has
// received the matching Target descriptor.
type sourceEntry struct {
	gid       GlobalID
	processed bool
}

// SourcePosition is the explicit, copyable resolution cursor for one thread:
// the next (synapse type, entry) pair to offer. Saving, restoring and
// resetting it never touches hidden state.
type SourcePosition struct {
	SynIndex int
	LCID     int
}

// threadSources holds one thread's pending entries, aligned with the
// connector buckets: sources[synID][lcid] belongs to the connection stored at
// the same (synID, lcid).
type threadSources struct {
	sources [][]sourceEntry
	pos     SourcePosition
	saved   SourcePosition

	// offered records the positions resolved since the last save; a restore
	// un-resolves exactly these, never entries from earlier rounds.
	offered      []SourcePosition
	lastOffered  SourcePosition
	offerPending bool
	unprocessed  int
}

// SourceTable stages not-yet-resolved source references per thread, with a
// save/restore/reset cursor enabling resumable, round-based resolution.
// Entries within one thread are strictly ordered; the cursor reproduces the
// same order across repeated rounds.
type SourceTable struct {
	threads   []threadSources
	discarded bool
}

// NewSourceTable creates a table for numThreads threads and numSynTypes
// synapse types.
func NewSourceTable(numThreads, numSynTypes int) *SourceTable {
	st := &SourceTable{threads: make([]threadSources, numThreads)}
	for t := range st.threads {
		st.threads[t].sources = make([][]sourceEntry, numSynTypes)
	}
	return st
}

func (st *SourceTable) thread(tid ThreadID) *threadSources {
	if st.discarded {
		panic("SourceTable: use after discard")
	}
	return &st.threads[tid]
}

// growSynTypes makes room for a late-registered synapse type.
func (st *SourceTable) growSynTypes(n int) {
	for t := range st.threads {
		for len(st.threads[t].sources) < n {
			st.threads[t].sources = append(st.threads[t].sources, nil)
		}
	}
}

// Add appends a pending entry for (tid, synID); the index it lands on equals
// the LCID of the connection stored alongside it.
func (st *SourceTable) Add(tid ThreadID, synID SynapseTypeID, gid GlobalID) int {
	ts := st.thread(tid)
	ts.sources[synID] = append(ts.sources[synID], sourceEntry{gid: gid})
	ts.unprocessed++
	return len(ts.sources[synID]) - 1
}

// SourceGID returns the pending source at a bucket position.
func (st *SourceTable) SourceGID(tid ThreadID, synID SynapseTypeID, lcid int) GlobalID {
	return st.thread(tid).sources[synID][lcid].gid
}

// SaveEntryPoint snapshots the thread's cursor and starts a fresh record of
// offers, so a later restore undoes exactly this round's resolutions.
func (st *SourceTable) SaveEntryPoint(tid ThreadID) {
	ts := st.thread(tid)
	ts.saved = ts.pos
	ts.offered = ts.offered[:0]
}

// RestoreEntryPoint rewinds the cursor to the last saved snapshot and
// un-resolves the entries offered since the save, so a failed round can be
// re-driven from the same starting position with the same offer sequence.
// Entries resolved in earlier rounds are untouched.
func (st *SourceTable) RestoreEntryPoint(tid ThreadID) {
	ts := st.thread(tid)
	for _, p := range ts.offered {
		entry := &ts.sources[p.SynIndex][p.LCID]
		if entry.processed {
			entry.processed = false
			ts.unprocessed++
		}
	}
	ts.offered = ts.offered[:0]
	ts.pos = ts.saved
	ts.offerPending = false
}

// ResetEntryPoint moves the cursor back to the beginning of the thread and
// drops the save snapshot along with its offer record.
func (st *SourceTable) ResetEntryPoint(tid ThreadID) {
	ts := st.thread(tid)
	ts.pos = SourcePosition{}
	ts.saved = SourcePosition{}
	ts.offered = ts.offered[:0]
	ts.offerPending = false
}

// Position returns the thread's current cursor value.
func (st *SourceTable) Position(tid ThreadID) SourcePosition {
	return st.thread(tid).pos
}

// SetPosition installs a previously obtained cursor value.
func (st *SourceTable) SetPosition(tid ThreadID, pos SourcePosition) {
	st.thread(tid).pos = pos
}

// NextTargetData scans forward from the thread's cursor for the next
// unprocessed entry whose source-hosting rank lies in [rankStart, rankEnd).
// Entries outside the window are skipped this pass without being consumed;
// a restore or reset revisits them. On success the entry is marked processed
// (RejectLastTargetData undoes that) and the TargetData plus destination rank
// are returned. ok is false when nothing in the window remains.
func (st *SourceTable) NextTargetData(tid ThreadID, rankStart, rankEnd Rank, ownRank Rank, lookup NodeLookup) (TargetData, Rank, bool) {
	ts := st.thread(tid)
	ts.offerPending = false
	for ts.pos.SynIndex < len(ts.sources) {
		bucket := ts.sources[ts.pos.SynIndex]
		if ts.pos.LCID >= len(bucket) {
			ts.pos.SynIndex++
			ts.pos.LCID = 0
			continue
		}
		entry := &bucket[ts.pos.LCID]
		cur := ts.pos
		ts.pos.LCID++
		if entry.processed {
			continue
		}
		destRank := lookup.HostRank(entry.gid)
		if destRank < rankStart || destRank >= rankEnd {
			continue // out of window; not consumed
		}
		entry.processed = true
		ts.unprocessed--
		ts.offered = append(ts.offered, cur)
		ts.lastOffered = cur
		ts.offerPending = true
		td := TargetData{
			SourceLID: lookup.LocalID(entry.gid),
			SourceTID: lookup.HostThread(entry.gid),
			Target: Target{
				Rank:        ownRank,
				Thread:      tid,
				SynapseType: SynapseTypeID(cur.SynIndex),
				LCID:        cur.LCID,
			},
		}
		return td, destRank, true
	}
	return TargetData{}, 0, false
}

// RejectLastTargetData undoes the previous successful NextTargetData for the
// thread: the entry becomes unprocessed again and the cursor steps back onto
// it, preserving order. Calling it with no offer outstanding is a protocol
// bug and fatal.
func (st *SourceTable) RejectLastTargetData(tid ThreadID) {
	ts := st.thread(tid)
	if !ts.offerPending {
		panic(fmt.Sprintf("SourceTable.RejectLastTargetData: thread %d has no outstanding offer", tid))
	}
	ts.sources[ts.lastOffered.SynIndex][ts.lastOffered.LCID].processed = false
	ts.unprocessed++
	if n := len(ts.offered); n > 0 && ts.offered[n-1] == ts.lastOffered {
		ts.offered = ts.offered[:n-1]
	}
	ts.pos = ts.lastOffered
	ts.offerPending = false
}

// IsCleared reports whether every entry on every thread has been resolved.
// A discarded table counts as cleared.
func (st *SourceTable) IsCleared() bool {
	if st.discarded {
		return true
	}
	for t := range st.threads {
		if st.threads[t].unprocessed > 0 {
			return false
		}
	}
	return true
}

// NumPending returns the count of unresolved entries on one thread.
func (st *SourceTable) NumPending(tid ThreadID) int {
	return st.thread(tid).unprocessed
}

// Discard frees the underlying storage; the table is no longer needed during
// simulation once every entry is resolved.
func (st *SourceTable) Discard() {
	st.threads = nil
	st.discarded = true
}

// Discarded reports whether the storage has been released.
func (st *SourceTable) Discarded() bool { return st.discarded }

// AddProcessed appends an already-resolved placeholder so device connections
// keep bucket LCIDs and source-table indices aligned without ever entering
// the resolution protocol.
func (st *SourceTable) AddProcessed(tid ThreadID, synID SynapseTypeID, gid GlobalID) int {
	ts := st.thread(tid)
	ts.sources[synID] = append(ts.sources[synID], sourceEntry{gid: gid, processed: true})
	return len(ts.sources[synID]) - 1
}

// applyPerm reorders one (thread, synapse type) lane in lockstep with its
// connector bucket; perm[newLCID] = oldLCID.
func (st *SourceTable) applyPerm(tid ThreadID, synID SynapseTypeID, perm []int) {
	ts := st.thread(tid)
	old := ts.sources[synID]
	if len(old) != len(perm) {
		panic("SourceTable.applyPerm: bucket length mismatch")
	}
	out := make([]sourceEntry, len(old))
	for newLCID, oldLCID := range perm {
		out[newLCID] = old[oldLCID]
	}
	ts.sources[synID] = out
}
