package conn

// bucketRef points at a stored connection in the (thread, synapse type)
// arena. Device routing reuses the authoritative store and only keeps these
// references, so queries and counters see device connections like any other.
type bucketRef struct {
	synID SynapseTypeID
	lcid  int
}

// TargetTableDevices is the direct-addressed routing table for device nodes.
// Devices have no remote proxy, so their connections bypass the distributed
// resolution protocol entirely: both directions are recorded here at connect
// time and stay thread-local.
type TargetTableDevices struct {
	// toDevice[tid][sourceGID] lists connections from a proxied neuron to
	// local devices.
	toDevice []map[GlobalID][]bucketRef
	// fromDevice[tid][deviceGID] lists connections from a local device to
	// its (local or proxied) targets.
	fromDevice []map[GlobalID][]bucketRef
}

// NewTargetTableDevices creates an empty device table for numThreads threads.
func NewTargetTableDevices(numThreads int) *TargetTableDevices {
	ttd := &TargetTableDevices{
		toDevice:   make([]map[GlobalID][]bucketRef, numThreads),
		fromDevice: make([]map[GlobalID][]bucketRef, numThreads),
	}
	for t := range ttd.toDevice {
		ttd.toDevice[t] = make(map[GlobalID][]bucketRef)
		ttd.fromDevice[t] = make(map[GlobalID][]bucketRef)
	}
	return ttd
}

// RegisterToDevice records a neuron-to-device connection stored at
// (tid, synID, lcid).
func (ttd *TargetTableDevices) RegisterToDevice(tid ThreadID, sourceGID GlobalID, synID SynapseTypeID, lcid int) {
	ttd.toDevice[tid][sourceGID] = append(ttd.toDevice[tid][sourceGID], bucketRef{synID: synID, lcid: lcid})
}

// RegisterFromDevice records a device-to-target connection stored at
// (tid, synID, lcid).
func (ttd *TargetTableDevices) RegisterFromDevice(tid ThreadID, deviceGID GlobalID, synID SynapseTypeID, lcid int) {
	ttd.fromDevice[tid][deviceGID] = append(ttd.fromDevice[tid][deviceGID], bucketRef{synID: synID, lcid: lcid})
}

// ToDevice returns the device connections of source sourceGID on thread tid.
func (ttd *TargetTableDevices) ToDevice(tid ThreadID, sourceGID GlobalID) []bucketRef {
	return ttd.toDevice[tid][sourceGID]
}

// FromDevice returns the outgoing connections of device deviceGID on tid.
func (ttd *TargetTableDevices) FromDevice(tid ThreadID, deviceGID GlobalID) []bucketRef {
	return ttd.fromDevice[tid][deviceGID]
}

// Clear drops one thread's registrations ahead of a rebuild.
func (ttd *TargetTableDevices) Clear(tid ThreadID) {
	ttd.toDevice[tid] = make(map[GlobalID][]bucketRef)
	ttd.fromDevice[tid] = make(map[GlobalID][]bucketRef)
}
