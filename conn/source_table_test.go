package conn

import "testing"

// miniLookup places gid g on rank g%ranks, thread 0, lid g/ranks.
type miniLookup struct{ ranks int }

func (m miniLookup) HostRank(gid GlobalID) Rank   { return Rank(int(gid) % m.ranks) }
func (m miniLookup) HostThread(GlobalID) ThreadID { return 0 }
func (m miniLookup) LocalID(gid GlobalID) int     { return int(gid) / m.ranks }
func (m miniLookup) NumLocal(Rank, ThreadID) int  { return 0 }
func (m miniLookup) Node(GlobalID) Node           { return nil }

func TestSourceTable_NextTargetData_OrderedConsumption(t *testing.T) {
	// GIVEN a thread with three pending entries for two synapse types
	st := NewSourceTable(1, 2)
	st.Add(0, 0, 10)
	st.Add(0, 0, 12)
	st.Add(0, 1, 14)
	look := miniLookup{ranks: 2}

	// WHEN the full rank window is drained
	var got []Target
	for {
		td, _, ok := st.NextTargetData(0, 0, 2, 0, look)
		if !ok {
			break
		}
		got = append(got, td.Target)
	}

	// THEN all three entries were offered exactly once, in insertion order:
	// synapse type 0 first (LCIDs 0, 1), then type 1 (LCID 0)
	want := []Target{
		{Rank: 0, Thread: 0, SynapseType: 0, LCID: 0},
		{Rank: 0, Thread: 0, SynapseType: 0, LCID: 1},
		{Rank: 0, Thread: 0, SynapseType: 1, LCID: 0},
	}
	if len(got) != len(want) {
		t.Fatalf("drained %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("offer %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	if !st.IsCleared() {
		t.Errorf("table not cleared after full drain")
	}
}

func TestSourceTable_CursorResumability(t *testing.T) {
	// GIVEN a thread with four pending entries
	st := NewSourceTable(1, 1)
	for gid := GlobalID(10); gid < 14; gid++ {
		st.Add(0, 0, gid)
	}
	look := miniLookup{ranks: 1}

	// WHEN the cursor is saved, two entries are pulled, and the cursor is
	// restored
	st.SaveEntryPoint(0)
	first, _, ok := st.NextTargetData(0, 0, 1, 0, look)
	if !ok {
		t.Fatalf("first pull failed")
	}
	if _, _, ok := st.NextTargetData(0, 0, 1, 0, look); !ok {
		t.Fatalf("second pull failed")
	}
	st.RestoreEntryPoint(0)

	// THEN resolution resumes at exactly the saved position: the offers
	// since the save are undone and the same entry comes out first again
	again, _, ok := st.NextTargetData(0, 0, 1, 0, look)
	if !ok {
		t.Fatalf("pull after restore failed")
	}
	if again.Target.LCID != first.Target.LCID {
		t.Errorf("after restore got LCID %d, want %d", again.Target.LCID, first.Target.LCID)
	}
	if st.NumPending(0) != 3 {
		t.Errorf("pending %d after restore and one pull, want 3", st.NumPending(0))
	}
}

func TestSourceTable_RestoreKeepsEarlierRoundsResolved(t *testing.T) {
	// GIVEN entries for ranks 0 and 1, with the rank-0 window drained in an
	// earlier round
	st := NewSourceTable(1, 1)
	st.Add(0, 0, 2) // rank 0
	st.Add(0, 0, 3) // rank 1
	look := miniLookup{ranks: 2}
	st.SaveEntryPoint(0)
	if _, _, ok := st.NextTargetData(0, 0, 1, 0, look); !ok {
		t.Fatalf("window [0,1) drain failed")
	}
	st.ResetEntryPoint(0)

	// WHEN a later round saves, offers the remaining entry, and restores
	st.SaveEntryPoint(0)
	if _, _, ok := st.NextTargetData(0, 1, 2, 0, look); !ok {
		t.Fatalf("window [1,2) pull failed")
	}
	st.RestoreEntryPoint(0)

	// THEN only the offer since the save is undone; the earlier round's
	// resolution stands and is never re-offered
	if st.NumPending(0) != 1 {
		t.Errorf("pending %d after restore, want 1", st.NumPending(0))
	}
	td, destRank, ok := st.NextTargetData(0, 0, 2, 0, look)
	if !ok {
		t.Fatalf("re-driven pull failed")
	}
	if destRank != 1 || td.Target.LCID != 1 {
		t.Errorf("re-driven offer rank %d LCID %d, want rank 1 LCID 1", destRank, td.Target.LCID)
	}
	if _, _, ok := st.NextTargetData(0, 0, 2, 0, look); ok {
		t.Errorf("already-resolved entry offered a second time")
	}
	if !st.IsCleared() {
		t.Errorf("table not cleared with every entry resolved once")
	}
}

func TestSourceTable_RejectLastTargetData_PreservesOrder(t *testing.T) {
	// GIVEN a thread with two pending entries
	st := NewSourceTable(1, 1)
	st.Add(0, 0, 10)
	st.Add(0, 0, 11)
	look := miniLookup{ranks: 1}

	// WHEN the first pull is rejected
	first, _, ok := st.NextTargetData(0, 0, 1, 0, look)
	if !ok {
		t.Fatalf("pull failed")
	}
	st.RejectLastTargetData(0)

	// THEN the same entry is offered again on the next pull
	redo, _, ok := st.NextTargetData(0, 0, 1, 0, look)
	if !ok {
		t.Fatalf("pull after reject failed")
	}
	if redo.Target.LCID != first.Target.LCID {
		t.Errorf("re-offer LCID %d, want %d", redo.Target.LCID, first.Target.LCID)
	}
	if st.IsCleared() {
		t.Errorf("table cleared with one entry still pending")
	}
}

func TestSourceTable_RejectWithoutOffer_Panics(t *testing.T) {
	// GIVEN a table with no outstanding offer
	st := NewSourceTable(1, 1)
	st.Add(0, 0, 10)

	// WHEN RejectLastTargetData is called anyway THEN it panics: this is a
	// protocol bug, not a recoverable condition
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on reject without outstanding offer")
		}
	}()
	st.RejectLastTargetData(0)
}

func TestSourceTable_RankWindow_SkipsWithoutConsuming(t *testing.T) {
	// GIVEN entries destined for ranks 0 and 1 (gid parity decides the rank)
	st := NewSourceTable(1, 1)
	st.Add(0, 0, 2) // rank 0
	st.Add(0, 0, 3) // rank 1
	st.Add(0, 0, 4) // rank 0
	look := miniLookup{ranks: 2}

	// WHEN only the window [1, 2) is drained
	n := 0
	for {
		_, destRank, ok := st.NextTargetData(0, 1, 2, 0, look)
		if !ok {
			break
		}
		if destRank != 1 {
			t.Errorf("got destination rank %d outside window", destRank)
		}
		n++
	}

	// THEN exactly the rank-1 entry was consumed and the others survive a
	// cursor reset
	if n != 1 {
		t.Errorf("window drain consumed %d entries, want 1", n)
	}
	st.ResetEntryPoint(0)
	rest := 0
	for {
		_, _, ok := st.NextTargetData(0, 0, 2, 0, look)
		if !ok {
			break
		}
		rest++
	}
	if rest != 2 {
		t.Errorf("remaining drain consumed %d entries, want 2", rest)
	}
	if !st.IsCleared() {
		t.Errorf("table not cleared after both windows drained")
	}
}

func TestSourceTable_ProcessedPlaceholders_NeverOffered(t *testing.T) {
	// GIVEN a device placeholder between two pending entries
	st := NewSourceTable(1, 1)
	st.Add(0, 0, 10)
	st.AddProcessed(0, 0, 99)
	st.Add(0, 0, 11)
	look := miniLookup{ranks: 1}

	// WHEN the thread is drained
	var lcids []int
	for {
		td, _, ok := st.NextTargetData(0, 0, 1, 0, look)
		if !ok {
			break
		}
		lcids = append(lcids, td.Target.LCID)
	}

	// THEN the placeholder keeps its LCID slot but is never offered
	if len(lcids) != 2 || lcids[0] != 0 || lcids[1] != 2 {
		t.Errorf("offered LCIDs %v, want [0 2]", lcids)
	}
}
