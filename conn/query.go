package conn

import "fmt"

// ConnQuery filters existing connections. Empty Sources/Targets mean "all
// nodes"; empty SynapseModel means all models; nil Label means all labels.
type ConnQuery struct {
	Sources      []GlobalID
	Targets      []GlobalID
	SynapseModel string
	Label        *int64
}

// ConnInfo describes one realized connection for introspection.
type ConnInfo struct {
	Source       GlobalID
	Target       GlobalID
	Thread       ThreadID
	SynapseType  SynapseTypeID
	SynapseModel string
	LCID         int
	Weight       float64
	DelayMS      float64
	Label        int64
}

// GetConnections returns the connections matching the query. Read-only: it
// never mutates delay-extrema state or the topology flag.
func (cm *ConnectionManager) GetConnections(q ConnQuery) ([]ConnInfo, error) {
	var wantSyn SynapseTypeID = -1
	if q.SynapseModel != "" {
		id, err := cm.models.IDByName(q.SynapseModel)
		if err != nil {
			return nil, fmt.Errorf("get_connections: %w", err)
		}
		wantSyn = id
	}
	srcSet := idSet(q.Sources)
	tgtSet := idSet(q.Targets)

	var out []ConnInfo
	for tid := range cm.buckets {
		for synIdx, b := range cm.buckets[tid] {
			if b == nil {
				continue
			}
			if wantSyn >= 0 && SynapseTypeID(synIdx) != wantSyn {
				continue
			}
			model := cm.models.Model(SynapseTypeID(synIdx))
			for lcid := range b.conns {
				c := &b.conns[lcid]
				if c.disabled {
					continue
				}
				if srcSet != nil && !srcSet[c.Source] {
					continue
				}
				if tgtSet != nil && !tgtSet[c.Target] {
					continue
				}
				if q.Label != nil && c.Label != *q.Label {
					continue
				}
				out = append(out, ConnInfo{
					Source:       c.Source,
					Target:       c.Target,
					Thread:       ThreadID(tid),
					SynapseType:  SynapseTypeID(synIdx),
					SynapseModel: model.Name,
					LCID:         lcid,
					Weight:       c.Weight,
					DelayMS:      cm.delayMS(c.DelaySteps),
					Label:        c.Label,
				})
			}
		}
	}
	return out, nil
}

func idSet(ids []GlobalID) map[GlobalID]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[GlobalID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SynapseStatus is the generic status view of one stored connection.
type SynapseStatus struct {
	Source   GlobalID
	Target   GlobalID
	Weight   float64
	DelayMS  float64
	Label    int64
	Receptor ReceptorTag
}

// GetSynapseStatus reads the connection at (tid, synID, lcid).
func (cm *ConnectionManager) GetSynapseStatus(tid ThreadID, synID SynapseTypeID, lcid int) SynapseStatus {
	c := cm.bucket(tid, synID).at(lcid)
	return SynapseStatus{
		Source:   c.Source,
		Target:   c.Target,
		Weight:   c.Weight,
		DelayMS:  cm.delayMS(c.DelaySteps),
		Label:    c.Label,
		Receptor: c.Receptor,
	}
}

// SetSynapseStatus updates writable fields of the connection at
// (tid, synID, lcid). Recognized keys: "weight", "delay" (ms), "label".
// A new delay must stay inside the calibrated extrema, since status writes
// never touch delay-extrema state.
func (cm *ConnectionManager) SetSynapseStatus(tid ThreadID, synID SynapseTypeID, lcid int, changes map[string]float64) error {
	c := cm.bucket(tid, synID).at(lcid)
	for key, v := range changes {
		switch key {
		case "weight":
			c.Weight = v
		case "delay":
			steps := cm.delaySteps(v)
			if steps < cm.minDelay || steps > cm.maxDelay {
				return fmt.Errorf("set_synapse_status: delay %g ms outside calibrated extrema: %w", v, ErrBadDelay)
			}
			c.DelaySteps = steps
		case "label":
			c.Label = int64(v)
		default:
			return fmt.Errorf("set_synapse_status: unknown key %q: %w", key, ErrBadSpec)
		}
	}
	return nil
}

// SourcesOf returns, per queried target, the sources of its incoming
// connections of the given synapse model (empty model = static_synapse).
func (cm *ConnectionManager) SourcesOf(targets []GlobalID, model string) ([][]GlobalID, error) {
	synID, err := cm.models.IDByName(model)
	if err != nil {
		return nil, err
	}
	out := make([][]GlobalID, len(targets))
	for i, tgid := range targets {
		out[i] = cm.collectEndpoints(synID, func(c *Connection) (GlobalID, bool) {
			return c.Source, c.Target == tgid
		})
	}
	return out, nil
}

// TargetsOf returns, per queried source, the targets of its outgoing
// connections of the given synapse model.
func (cm *ConnectionManager) TargetsOf(sources []GlobalID, model string) ([][]GlobalID, error) {
	synID, err := cm.models.IDByName(model)
	if err != nil {
		return nil, err
	}
	out := make([][]GlobalID, len(sources))
	for i, sgid := range sources {
		out[i] = cm.collectEndpoints(synID, func(c *Connection) (GlobalID, bool) {
			return c.Target, c.Source == sgid
		})
	}
	return out, nil
}

func (cm *ConnectionManager) collectEndpoints(synID SynapseTypeID, pick func(*Connection) (GlobalID, bool)) []GlobalID {
	var out []GlobalID
	for tid := range cm.buckets {
		if int(synID) >= len(cm.buckets[tid]) || cm.buckets[tid][synID] == nil {
			continue
		}
		b := cm.buckets[tid][synID]
		for i := range b.conns {
			c := &b.conns[i]
			if c.disabled {
				continue
			}
			if gid, ok := pick(c); ok {
				out = append(out, gid)
			}
		}
	}
	return out
}
