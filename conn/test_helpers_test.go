package conn

import "testing"

// buildNetwork creates a grid of neurons and one manager per rank sharing a
// synapse-model catalog, with deterministic seeding.
func buildNetwork(t *testing.T, ranks, threads, neurons int, models ...SynapseModel) (*NodeGrid, []*ConnectionManager) {
	t.Helper()
	catalog := NewSynapseModelCatalog()
	for _, m := range models {
		if _, err := catalog.Register(m); err != nil {
			t.Fatalf("register model %q: %v", m.Name, err)
		}
	}
	grid := NewNodeGrid(ranks, threads, neurons)
	managers := make([]*ConnectionManager, ranks)
	for r := 0; r < ranks; r++ {
		cm, err := NewConnectionManager(Config{
			Rank:       Rank(r),
			NumRanks:   ranks,
			NumThreads: threads,
			Lookup:     grid,
			Models:     catalog,
			Seed:       42,
		})
		if err != nil {
			t.Fatalf("new manager rank %d: %v", r, err)
		}
		managers[r] = cm
	}
	return grid, managers
}

// connectAll drives one bulk connect call on every rank, the way the outer
// scheduler replays connect calls across the whole process group.
func connectAll(t *testing.T, managers []*ConnectionManager, sources, targets []GlobalID, cs ConnSpec, ss SynSpec) {
	t.Helper()
	for _, cm := range managers {
		if err := cm.Connect(sources, targets, cs, ss); err != nil {
			t.Fatalf("rank %d connect: %v", cm.Rank(), err)
		}
	}
}

// resolve runs the resolution protocol over the managers.
func resolve(t *testing.T, managers []*ConnectionManager, bufferSize int) {
	t.Helper()
	if err := NewResolver(managers, bufferSize).Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
}

// allConnections flattens every live connection across the managers into
// (source, target) pairs for round-trip checks.
func allConnections(t *testing.T, managers []*ConnectionManager) map[[2]GlobalID]int {
	t.Helper()
	pairs := make(map[[2]GlobalID]int)
	for _, cm := range managers {
		infos, err := cm.GetConnections(ConnQuery{})
		if err != nil {
			t.Fatalf("rank %d get connections: %v", cm.Rank(), err)
		}
		for _, ci := range infos {
			pairs[[2]GlobalID{ci.Source, ci.Target}]++
		}
	}
	return pairs
}

// scalingState is a minimal plasticity stub: OnTrigger multiplies the weight
// by the batch size, OnSend leaves it unchanged.
type scalingState struct{}

func (s *scalingState) OnSend(w float64, _ Tick) float64 { return w }

func (s *scalingState) OnTrigger(w float64, spikes []*SpikeEvent, _ float64) float64 {
	return w * float64(len(spikes)+1)
}
