package conn

import "gonum.org/v1/gonum/stat"

// Status is the introspection snapshot exposed by the manager: connection
// counts, calibrated extrema, and the rule registry contents.
type Status struct {
	Rank                   int               `yaml:"rank"`
	NumConnections         uint64            `yaml:"num_connections"`
	NumConnectionsByModel  map[string]uint64 `yaml:"num_connections_by_model"`
	MinDelayMS             float64           `yaml:"min_delay_ms"`
	MaxDelayMS             float64           `yaml:"max_delay_ms"`
	UserSetDelayExtrema    bool              `yaml:"user_set_delay_extrema"`
	HaveConnectionsChanged bool              `yaml:"have_connections_changed"`
	ConnectionRules        []string          `yaml:"connection_rules"`
	SynapseModels          []string          `yaml:"synapse_models"`
}

// Status assembles the manager's introspection snapshot.
func (cm *ConnectionManager) Status() Status {
	byModel := make(map[string]uint64)
	for id := 0; id < cm.models.NumModels(); id++ {
		n := cm.NumConnectionsOfType(SynapseTypeID(id))
		if n > 0 {
			byModel[cm.models.Model(SynapseTypeID(id)).Name] = n
		}
	}
	return Status{
		Rank:                   int(cm.rank),
		NumConnections:         cm.NumConnections(),
		NumConnectionsByModel:  byModel,
		MinDelayMS:             cm.delayMS(cm.minDelay),
		MaxDelayMS:             cm.delayMS(cm.maxDelay),
		UserSetDelayExtrema:    cm.userSetExtrema,
		HaveConnectionsChanged: cm.haveConnectionsChanged,
		ConnectionRules:        RegisteredRules(),
		SynapseModels:          cm.models.Names(),
	}
}

// ConnectionStats summarizes the realized weight and delay distributions on
// this rank.
type ConnectionStats struct {
	Count        int     `yaml:"count"`
	MeanWeight   float64 `yaml:"mean_weight"`
	StdDevWeight float64 `yaml:"stddev_weight"`
	MeanDelayMS  float64 `yaml:"mean_delay_ms"`
	StdDevDelay  float64 `yaml:"stddev_delay_ms"`
}

// ConnectionStats computes weight/delay summaries over all live connections.
func (cm *ConnectionManager) ConnectionStats() ConnectionStats {
	var weights, delays []float64
	for tid := range cm.buckets {
		for _, b := range cm.buckets[tid] {
			if b == nil {
				continue
			}
			for i := range b.conns {
				c := &b.conns[i]
				if c.disabled {
					continue
				}
				weights = append(weights, c.Weight)
				delays = append(delays, cm.delayMS(c.DelaySteps))
			}
		}
	}
	if len(weights) == 0 {
		return ConnectionStats{}
	}
	return ConnectionStats{
		Count:        len(weights),
		MeanWeight:   stat.Mean(weights, nil),
		StdDevWeight: stat.StdDev(weights, nil),
		MeanDelayMS:  stat.Mean(delays, nil),
		StdDevDelay:  stat.StdDev(delays, nil),
	}
}
