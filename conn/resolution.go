package conn

// Protocol wrappers for the two-phase distributed source/target resolution.
// The outer scheduler drives rounds: PrepareTargetTable on the source-hosting
// side, then repeated NextTargetData pulls (with RejectLastTargetData for
// flow control) until every rank and thread reports exhaustion, delivering
// each TargetData to AddTarget on the rank hosting the source.

// PrepareTargetTable resets the per-thread TargetTable write cursor on the
// rank hosting the source nodes.
func (cm *ConnectionManager) PrepareTargetTable(tid ThreadID) {
	cm.targetTable.Prepare(tid, cm.lookup.NumLocal(cm.rank, tid))
	cm.resolutionStarted = true
}

// NextTargetData returns the next pending entry for a target rank inside
// [rankStart, rankEnd), or ok=false when none remain in the window. The rank
// window is a caller-supplied scan bound: out-of-window entries are skipped
// this pass without being consumed.
func (cm *ConnectionManager) NextTargetData(tid ThreadID, rankStart, rankEnd Rank) (TargetData, Rank, bool) {
	return cm.sourceTable.NextTargetData(tid, rankStart, rankEnd, cm.rank, cm.lookup)
}

// RejectLastTargetData undoes the thread's last tentative pull when the
// receiving side cannot accept it this round, without losing order.
func (cm *ConnectionManager) RejectLastTargetData(tid ThreadID) {
	cm.sourceTable.RejectLastTargetData(tid)
}

// SaveSourceTableEntryPoint snapshots the thread's resolution cursor so a
// round can be re-driven from the same starting position.
func (cm *ConnectionManager) SaveSourceTableEntryPoint(tid ThreadID) {
	cm.sourceTable.SaveEntryPoint(tid)
}

// RestoreSourceTableEntryPoint rewinds the cursor to the saved snapshot.
func (cm *ConnectionManager) RestoreSourceTableEntryPoint(tid ThreadID) {
	cm.sourceTable.RestoreEntryPoint(tid)
}

// ResetSourceTableEntryPoint rewinds the cursor to the start of the thread.
func (cm *ConnectionManager) ResetSourceTableEntryPoint(tid ThreadID) {
	cm.sourceTable.ResetEntryPoint(tid)
}

// AddTarget appends a resolved Target descriptor received from the rank
// hosting the target node into this rank's TargetTable.
func (cm *ConnectionManager) AddTarget(td TargetData) {
	cm.targetTable.Add(td.SourceTID, td.SourceLID, td.Target)
}

// IsSourceTableCleared reports whether every staged entry has been resolved.
func (cm *ConnectionManager) IsSourceTableCleared() bool {
	return cm.sourceTable.IsCleared()
}

// DiscardSourceTable releases the staging storage once resolution completed,
// unless the manager was configured to keep it.
func (cm *ConnectionManager) DiscardSourceTable() {
	if cm.keepSources {
		return
	}
	if !cm.sourceTable.IsCleared() {
		panic("ConnectionManager.DiscardSourceTable: source table not cleared")
	}
	cm.sourceTable.Discard()
}

// Targets returns the routing descriptors of local node (tid, lid).
func (cm *ConnectionManager) Targets(tid ThreadID, lid int) []Target {
	return cm.targetTable.Targets(tid, lid)
}

// TargetGID returns the target node of the connection stored at
// (tid, synID, lcid).
func (cm *ConnectionManager) TargetGID(tid ThreadID, synID SynapseTypeID, lcid int) GlobalID {
	return cm.bucket(tid, synID).at(lcid).Target
}
