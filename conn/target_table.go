package conn

// TargetTable is the resolved, read-mostly routing index on the rank hosting
// the source node: local node -> ordered list of remote delivery descriptors.
// Append-only during resolution, immutable during a simulation run.
type TargetTable struct {
	// targets[tid][lid] lists the Target descriptors of the local node with
	// thread-local index lid on thread tid.
	targets [][][]Target
}

// NewTargetTable creates a table for numThreads threads. Per-thread slots are
// sized by Prepare.
func NewTargetTable(numThreads int) *TargetTable {
	return &TargetTable{targets: make([][][]Target, numThreads)}
}

// Prepare resets the thread's write cursor: one empty slot per local node.
func (tt *TargetTable) Prepare(tid ThreadID, numLocalNodes int) {
	tt.targets[tid] = make([][]Target, numLocalNodes)
}

// Add appends a resolved descriptor for the local node (tid, lid).
func (tt *TargetTable) Add(tid ThreadID, lid int, tgt Target) {
	if tt.targets[tid] == nil {
		panic("TargetTable.Add: thread not prepared")
	}
	tt.targets[tid][lid] = append(tt.targets[tid][lid], tgt)
}

// Targets returns the descriptors of local node (tid, lid). Read-only.
func (tt *TargetTable) Targets(tid ThreadID, lid int) []Target {
	if tt.targets[tid] == nil || lid >= len(tt.targets[tid]) {
		return nil
	}
	return tt.targets[tid][lid]
}

// Prepared reports whether the thread has been sized for writing.
func (tt *TargetTable) Prepared(tid ThreadID) bool { return tt.targets[tid] != nil }

// Clear drops the thread's descriptors ahead of a rebuild.
func (tt *TargetTable) Clear(tid ThreadID) { tt.targets[tid] = nil }

// NumTargets counts all descriptors held for one thread.
func (tt *TargetTable) NumTargets(tid ThreadID) int {
	n := 0
	for _, lst := range tt.targets[tid] {
		n += len(lst)
	}
	return n
}
