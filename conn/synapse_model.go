package conn

import (
	"fmt"
	"sort"
)

// PlasticityState is the opaque per-connection plasticity contract. The
// mathematics live outside this subsystem; the connection storage only calls
// through these two hooks and stores the returned weight.
type PlasticityState interface {
	// OnSend returns the weight to apply for an event generated at stamp.
	OnSend(weight float64, stamp Tick) float64
	// OnTrigger applies a modulator spike batch ending at time t (ms) and
	// returns the updated weight.
	OnTrigger(weight float64, spikes []*SpikeEvent, t float64) float64
}

// SynapseModel is one registered synapse-type category: delivery kind,
// defaults used for sentinel resolution, and an optional plasticity-state
// factory plus the modulator node driving non-pairwise updates.
type SynapseModel struct {
	Name           string
	EventKind      EventKind
	DefaultWeight  float64
	DefaultDelayMS float64
	// Modulator is the GlobalID of the volume-transmitter style node whose
	// TriggerUpdateWeight broadcasts reach this model. Zero means none.
	Modulator GlobalID
	// NewState creates the per-connection plasticity state; nil for static
	// synapses.
	NewState func() PlasticityState
}

// SynapseModelCatalog assigns SynapseTypeIDs at registration and resolves
// names to models. Immutable after setup except through Recalibrate.
type SynapseModelCatalog struct {
	models []SynapseModel
	byName map[string]SynapseTypeID
}

// NewSynapseModelCatalog returns a catalog preloaded with "static_synapse"
// (weight 1, delay 1 ms) as type 0.
func NewSynapseModelCatalog() *SynapseModelCatalog {
	c := &SynapseModelCatalog{byName: make(map[string]SynapseTypeID)}
	_, err := c.Register(SynapseModel{
		Name:           "static_synapse",
		EventKind:      SpikeEventKind,
		DefaultWeight:  1.0,
		DefaultDelayMS: 1.0,
	})
	if err != nil {
		panic("NewSynapseModelCatalog: " + err.Error())
	}
	return c
}

// Register adds a model and returns its SynapseTypeID.
func (c *SynapseModelCatalog) Register(m SynapseModel) (SynapseTypeID, error) {
	if m.Name == "" {
		return 0, fmt.Errorf("synapse model name empty: %w", ErrBadSpec)
	}
	if _, exists := c.byName[m.Name]; exists {
		return 0, fmt.Errorf("synapse model %q already registered: %w", m.Name, ErrBadSpec)
	}
	id := SynapseTypeID(len(c.models))
	c.models = append(c.models, m)
	c.byName[m.Name] = id
	return id, nil
}

// IDByName resolves a model name; the empty name means static_synapse.
func (c *SynapseModelCatalog) IDByName(name string) (SynapseTypeID, error) {
	if name == "" {
		name = "static_synapse"
	}
	id, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownSynapseModel, name)
	}
	return id, nil
}

// Model returns the model for an id; panics on an out-of-range id, which is
// a programming error, not user input.
func (c *SynapseModelCatalog) Model(id SynapseTypeID) *SynapseModel {
	if int(id) < 0 || int(id) >= len(c.models) {
		panic(fmt.Sprintf("SynapseModelCatalog.Model: no synapse type %d", id))
	}
	return &c.models[id]
}

// NumModels returns the number of registered models.
func (c *SynapseModelCatalog) NumModels() int { return len(c.models) }

// Names returns all registered model names in sorted order.
func (c *SynapseModelCatalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for _, m := range c.models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// ModulatedBy returns the ids of all models registered with the modulator.
func (c *SynapseModelCatalog) ModulatedBy(modulator GlobalID) []SynapseTypeID {
	var ids []SynapseTypeID
	for i, m := range c.models {
		if m.Modulator != InvalidGlobalID && m.Modulator == modulator {
			ids = append(ids, SynapseTypeID(i))
		}
	}
	return ids
}

// Recalibrate forwards a time-representation change to every model. Only the
// delay defaults carry time units here.
func (c *SynapseModelCatalog) Recalibrate(tc TimeConverter) {
	if tc.Identity() {
		return
	}
	// Defaults are stored in ms, so a resolution change leaves them as-is;
	// models holding step-denominated state would convert it here.
}
