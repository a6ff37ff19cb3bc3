package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(b bool) *bool { return &b }

func TestOneToOne_Pairs(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 6)
	connectAll(t, managers, []GlobalID{1, 2, 3}, []GlobalID{4, 5, 6},
		ConnSpec{Rule: RuleOneToOne}, SynSpec{})

	pairs := allConnections(t, managers)
	assert.Len(t, pairs, 3)
	assert.Equal(t, 1, pairs[[2]GlobalID{1, 4}])
	assert.Equal(t, 1, pairs[[2]GlobalID{2, 5}])
	assert.Equal(t, 1, pairs[[2]GlobalID{3, 6}])
}

func TestOneToOne_LengthMismatch(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 6)
	err := managers[0].Connect([]GlobalID{1, 2}, []GlobalID{4, 5, 6},
		ConnSpec{Rule: RuleOneToOne}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)
}

func TestAllToAll_NoAutapses(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 3)
	set := []GlobalID{1, 2, 3}
	connectAll(t, managers, set, set,
		ConnSpec{Rule: RuleAllToAll, AllowAutapses: boolp(false)}, SynSpec{})

	pairs := allConnections(t, managers)
	assert.Len(t, pairs, 6)
	for pair := range pairs {
		assert.NotEqual(t, pair[0], pair[1], "autapse %v realized despite allow_autapses=false", pair)
	}
}

func TestFixedIndegree_DegreeAndNoMultapses(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 10)
	sources := []GlobalID{1, 2, 3, 4, 5}
	targets := []GlobalID{6, 7, 8, 9, 10}
	connectAll(t, managers, sources, targets,
		ConnSpec{Rule: RuleFixedIndegree, Indegree: 3, AllowMultapses: boolp(false)}, SynSpec{})

	indegree := make(map[GlobalID]int)
	for pair, n := range allConnections(t, managers) {
		assert.Equal(t, 1, n, "multapse on %v despite allow_multapses=false", pair)
		indegree[pair[1]]++
	}
	for _, tgid := range targets {
		assert.Equal(t, 3, indegree[tgid], "target %d indegree", tgid)
	}
}

func TestFixedIndegree_NoAutapses(t *testing.T) {
	grid, managers := buildNetwork(t, 1, 1, 5)
	set := grid.NeuronIDs()
	connectAll(t, managers, set, set,
		ConnSpec{Rule: RuleFixedIndegree, Indegree: 2, AllowAutapses: boolp(false)}, SynSpec{})

	for pair := range allConnections(t, managers) {
		assert.NotEqual(t, pair[0], pair[1])
	}
}

func TestFixedIndegree_TooLargeWithoutMultapses(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 5)
	err := managers[0].Connect([]GlobalID{1, 2}, []GlobalID{3, 4, 5},
		ConnSpec{Rule: RuleFixedIndegree, Indegree: 3, AllowMultapses: boolp(false)}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)
}

func TestFixedDegreeRules_SelfOnlyPoolWithoutAutapses(t *testing.T) {
	// a node whose only potential partner is itself cannot satisfy the rule
	_, managers := buildNetwork(t, 1, 1, 2)
	cm := managers[0]

	err := cm.Connect([]GlobalID{1}, []GlobalID{1},
		ConnSpec{Rule: RuleFixedIndegree, Indegree: 1, AllowAutapses: boolp(false)}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)

	err = cm.Connect([]GlobalID{1}, []GlobalID{1},
		ConnSpec{Rule: RuleFixedOutdegree, Outdegree: 1, AllowAutapses: boolp(false)}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)
	assert.Equal(t, uint64(0), cm.NumConnections())
}

func TestFixedIndegree_AutapseExclusionShrinksPool(t *testing.T) {
	// two sources minus self leaves one eligible partner, short of indegree 2
	_, managers := buildNetwork(t, 1, 1, 2)
	err := managers[0].Connect([]GlobalID{1, 2}, []GlobalID{1},
		ConnSpec{
			Rule: RuleFixedIndegree, Indegree: 2,
			AllowAutapses: boolp(false), AllowMultapses: boolp(false),
		}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)
}

func TestFixedOutdegree_Degree(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 8)
	sources := []GlobalID{1, 2, 3}
	targets := []GlobalID{4, 5, 6, 7, 8}
	connectAll(t, managers, sources, targets,
		ConnSpec{Rule: RuleFixedOutdegree, Outdegree: 2, AllowMultapses: boolp(false)}, SynSpec{})

	outdegree := make(map[GlobalID]int)
	for pair := range allConnections(t, managers) {
		outdegree[pair[0]]++
	}
	for _, sgid := range sources {
		assert.Equal(t, 2, outdegree[sgid], "source %d outdegree", sgid)
	}
}

func TestPairwiseBernoulli_Extremes(t *testing.T) {
	_, managers := buildNetwork(t, 1, 1, 6)
	sources := []GlobalID{1, 2, 3}
	targets := []GlobalID{4, 5, 6}

	// p=1 realizes every pair, p=0 realizes none
	connectAll(t, managers, sources, targets,
		ConnSpec{Rule: RulePairwiseBernoulli, P: 1.0}, SynSpec{})
	require.Len(t, allConnections(t, managers), 9)

	connectAll(t, managers, sources, targets,
		ConnSpec{Rule: RulePairwiseBernoulli, P: 0.0}, SynSpec{})
	assert.Len(t, allConnections(t, managers), 9)

	err := managers[0].Connect(sources, targets,
		ConnSpec{Rule: RulePairwiseBernoulli, P: 1.5}, SynSpec{})
	assert.ErrorIs(t, err, ErrBadSpec)
}

func TestRandomRules_SeedDeterminism(t *testing.T) {
	// GIVEN two networks built identically from the same master seed
	build := func() map[[2]GlobalID]int {
		grid, managers := buildNetwork(t, 1, 1, 12)
		connectAll(t, managers, grid.NeuronIDs()[:6], grid.NeuronIDs()[6:],
			ConnSpec{Rule: RuleFixedIndegree, Indegree: 4}, SynSpec{})
		return allConnections(t, managers)
	}

	// THEN the realized random graphs are identical
	assert.Equal(t, build(), build())
}

func TestRandomRules_ConsistentAcrossRanks(t *testing.T) {
	// GIVEN a random rule driven on every rank of a two-rank build
	grid, managers := buildNetwork(t, 2, 2, 12)
	sources := grid.NeuronIDs()[:6]
	targets := grid.NeuronIDs()[6:]
	connectAll(t, managers, sources, targets,
		ConnSpec{Rule: RuleFixedIndegree, Indegree: 3, AllowMultapses: boolp(false)}, SynSpec{})

	// THEN each target is realized on exactly its hosting rank with the full
	// indegree: the ranks drew one consistent random graph
	pairs := allConnections(t, managers)
	total := 0
	indegree := make(map[GlobalID]int)
	for pair, n := range pairs {
		total += n
		indegree[pair[1]] += n
	}
	assert.Equal(t, len(targets)*3, total)
	for _, tgid := range targets {
		assert.Equal(t, 3, indegree[tgid], "target %d indegree", tgid)
	}
}
