package conn

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkPlan is the yaml description of a network build: topology sizing,
// the synapse-model catalog, and the connect calls to drive on every rank.
type NetworkPlan struct {
	Seed         int64   `yaml:"seed"`
	Ranks        int     `yaml:"ranks"`
	Threads      int     `yaml:"threads"`
	Neurons      int     `yaml:"neurons"`
	ResolutionMS float64 `yaml:"resolution_ms,omitempty"`
	MinDelayMS   float64 `yaml:"min_delay_ms,omitempty"`
	MaxDelayMS   float64 `yaml:"max_delay_ms,omitempty"`

	Models   []ModelSpec     `yaml:"models,omitempty"`
	Connects []ConnectStanza `yaml:"connects"`
}

// ModelSpec registers one synapse model from the plan.
type ModelSpec struct {
	Name           string  `yaml:"name"`
	EventKind      string  `yaml:"event_kind,omitempty"` // spike (default), current, rate
	DefaultWeight  float64 `yaml:"weight"`
	DefaultDelayMS float64 `yaml:"delay_ms"`
}

// NodeSet selects an inclusive GlobalID range.
type NodeSet struct {
	From GlobalID `yaml:"from"`
	To   GlobalID `yaml:"to"`
}

// IDs expands the range.
func (ns NodeSet) IDs() []GlobalID {
	if ns.To < ns.From {
		return nil
	}
	ids := make([]GlobalID, 0, ns.To-ns.From+1)
	for gid := ns.From; gid <= ns.To; gid++ {
		ids = append(ids, gid)
	}
	return ids
}

// ConnectStanza is one bulk connect call.
type ConnectStanza struct {
	Sources NodeSet  `yaml:"sources"`
	Targets NodeSet  `yaml:"targets"`
	Conn    ConnSpec `yaml:"conn"`
	Syn     SynSpec  `yaml:"syn"`
}

// LoadNetworkPlan reads and parses a yaml plan file.
func LoadNetworkPlan(path string) (*NetworkPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network plan: %w", err)
	}
	var plan NetworkPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing network plan: %w", err)
	}
	return &plan, nil
}

var validEventKinds = map[string]EventKind{
	"":        SpikeEventKind,
	"spike":   SpikeEventKind,
	"current": CurrentEventKind,
	"rate":    RateEventKind,
}

// Validate checks rule names, model references and parameter ranges before
// any manager is built from the plan.
func (p *NetworkPlan) Validate() error {
	if p.Ranks < 1 {
		return fmt.Errorf("ranks must be positive, got %d: %w", p.Ranks, ErrBadSpec)
	}
	if p.Threads < 1 {
		return fmt.Errorf("threads must be positive, got %d: %w", p.Threads, ErrBadSpec)
	}
	if p.Neurons < 1 {
		return fmt.Errorf("neurons must be positive, got %d: %w", p.Neurons, ErrBadSpec)
	}
	if p.ResolutionMS < 0 {
		return fmt.Errorf("resolution_ms must be non-negative, got %g: %w", p.ResolutionMS, ErrBadSpec)
	}
	modelNames := map[string]bool{"static_synapse": true, "": true}
	for _, m := range p.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name: %w", ErrBadSpec)
		}
		if modelNames[m.Name] {
			return fmt.Errorf("duplicate model %q: %w", m.Name, ErrBadSpec)
		}
		if _, ok := validEventKinds[m.EventKind]; !ok {
			return fmt.Errorf("model %q: unknown event kind %q: %w", m.Name, m.EventKind, ErrBadSpec)
		}
		if m.DefaultDelayMS < 0 {
			return fmt.Errorf("model %q: delay_ms must be non-negative, got %g: %w", m.Name, m.DefaultDelayMS, ErrBadSpec)
		}
		modelNames[m.Name] = true
	}
	for i, c := range p.Connects {
		if _, ok := ruleFactories[c.Conn.Rule]; !ok {
			return fmt.Errorf("connects[%d]: %w %q", i, ErrUnknownRule, c.Conn.Rule)
		}
		if !modelNames[c.Syn.Model] {
			return fmt.Errorf("connects[%d]: %w %q", i, ErrUnknownSynapseModel, c.Syn.Model)
		}
		if len(c.Sources.IDs()) == 0 || len(c.Targets.IDs()) == 0 {
			return fmt.Errorf("connects[%d]: %w", i, ErrEmptyNodeSet)
		}
		if c.Syn.Delay != nil && *c.Syn.Delay <= 0 {
			return fmt.Errorf("connects[%d]: delay must be positive, got %g: %w", i, *c.Syn.Delay, ErrBadDelay)
		}
	}
	return nil
}

// Catalog builds the synapse-model catalog declared by the plan.
func (p *NetworkPlan) Catalog() (*SynapseModelCatalog, error) {
	catalog := NewSynapseModelCatalog()
	for _, m := range p.Models {
		_, err := catalog.Register(SynapseModel{
			Name:           m.Name,
			EventKind:      validEventKinds[m.EventKind],
			DefaultWeight:  m.DefaultWeight,
			DefaultDelayMS: m.DefaultDelayMS,
		})
		if err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Build constructs the node grid and one manager per rank, then drives every
// connect stanza on every rank. Each rank realizes the connections whose
// targets it hosts.
func (p *NetworkPlan) Build() (*NodeGrid, []*ConnectionManager, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	grid := NewNodeGrid(p.Ranks, p.Threads, p.Neurons)
	managers := make([]*ConnectionManager, p.Ranks)
	for rank := 0; rank < p.Ranks; rank++ {
		catalog, err := p.Catalog()
		if err != nil {
			return nil, nil, err
		}
		cm, err := NewConnectionManager(Config{
			Rank:         Rank(rank),
			NumRanks:     p.Ranks,
			NumThreads:   p.Threads,
			Lookup:       grid,
			Models:       catalog,
			ResolutionMS: p.ResolutionMS,
			MinDelayMS:   p.MinDelayMS,
			MaxDelayMS:   p.MaxDelayMS,
			Seed:         p.Seed,
		})
		if err != nil {
			return nil, nil, err
		}
		managers[rank] = cm
	}
	for _, stanza := range p.Connects {
		sources := stanza.Sources.IDs()
		targets := stanza.Targets.IDs()
		for _, cm := range managers {
			if err := cm.Connect(sources, targets, stanza.Conn, stanza.Syn); err != nil {
				return nil, nil, err
			}
		}
	}
	return grid, managers, nil
}
