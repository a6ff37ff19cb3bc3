package conn

// Runtime event routing. All sends read TargetTable / connection storage
// only; the single exception is per-connection plasticity state, owned
// exclusively by the delivering thread. No cross-thread write happens here.

// Send routes an event from the local source node (tid, lid) to every Target
// descriptor it has, invoking deliver once per descriptor. Physical transport
// to remote ranks is the caller's concern; the receiving rank dispatches each
// descriptor through SendBucket.
func (cm *ConnectionManager) Send(tid ThreadID, lid int, ev Event, deliver func(Target, Event)) {
	for _, tgt := range cm.targetTable.Targets(tid, lid) {
		deliver(tgt, ev)
	}
}

// SendBucket is the hot path: look up the connection at a bucket position,
// apply its current weight/delay/plasticity state to a copy of the event,
// and hand it to the owning thread's delivery queue.
func (cm *ConnectionManager) SendBucket(tid ThreadID, synID SynapseTypeID, lcid int, ev Event) {
	c := cm.bucket(tid, synID).at(lcid)
	if c.disabled {
		return
	}
	w := c.Weight
	if c.plastic != nil {
		w = c.plastic.OnSend(w, ev.Stamp())
		c.Weight = w
	}
	e := ev.Clone()
	e.SetWeight(w)
	e.SetDelay(c.DelaySteps)
	cm.deliveries[tid].push(delivery{
		due:  ev.Stamp() + Tick(c.DelaySteps),
		node: cm.lookup.Node(c.Target),
		ev:   e,
	})
}

// SendSecondary delivers a variable-size payload event through a bucket
// position. Secondary events are batched by the caller and handed straight to
// the target node rather than queued per spike.
func (cm *ConnectionManager) SendSecondary(tid ThreadID, synID SynapseTypeID, lcid int, ev *RateEvent) {
	c := cm.bucket(tid, synID).at(lcid)
	if c.disabled {
		return
	}
	e := ev.Clone()
	e.SetWeight(c.Weight)
	e.SetDelay(c.DelaySteps)
	cm.lookup.Node(c.Target).Deliver(e)
}

// SendLocal routes an event from a local source node to its thread-local
// targets directly, skipping descriptors that live on other ranks.
func (cm *ConnectionManager) SendLocal(tid ThreadID, source Node, ev Event) {
	lid := cm.lookup.LocalID(source.ID())
	for _, tgt := range cm.targetTable.Targets(tid, lid) {
		if tgt.Rank != cm.rank {
			continue
		}
		cm.SendBucket(tgt.Thread, tgt.SynapseType, tgt.LCID, ev)
	}
}

// SendToDevices delivers an event to every device target of source sourceGID
// on thread tid. Devices are thread-local, so delivery is immediate.
func (cm *ConnectionManager) SendToDevices(tid ThreadID, sourceGID GlobalID, ev Event) {
	for _, ref := range cm.deviceTable.ToDevice(tid, sourceGID) {
		cm.deliverDirect(tid, ref, ev)
	}
}

// SendFromDevice delivers an event from the local device deviceGID to all of
// its targets on thread tid.
func (cm *ConnectionManager) SendFromDevice(tid ThreadID, deviceGID GlobalID, ev Event) {
	for _, ref := range cm.deviceTable.FromDevice(tid, deviceGID) {
		cm.deliverDirect(tid, ref, ev)
	}
}

func (cm *ConnectionManager) deliverDirect(tid ThreadID, ref bucketRef, ev Event) {
	c := cm.bucket(tid, ref.synID).at(ref.lcid)
	if c.disabled {
		return
	}
	e := ev.Clone()
	e.SetWeight(c.Weight)
	e.SetDelay(c.DelaySteps)
	cm.lookup.Node(c.Target).Deliver(e)
}

// DeliverUntil drains the thread's delivery queue up to and including now,
// handing each event to its node. Returns the number delivered.
func (cm *ConnectionManager) DeliverUntil(tid ThreadID, now Tick) int {
	return cm.deliveries[tid].drainUntil(now)
}
