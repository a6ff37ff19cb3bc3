package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labeledNetwork(t *testing.T) (*NodeGrid, *ConnectionManager) {
	t.Helper()
	grid, managers := buildNetwork(t, 1, 1, 6, SynapseModel{
		Name:           "aux_synapse",
		EventKind:      SpikeEventKind,
		DefaultWeight:  0.5,
		DefaultDelayMS: 2.0,
	})
	cm := managers[0]
	label := int64(7)
	connectAll(t, managers, []GlobalID{1, 2, 3}, []GlobalID{4, 5, 6},
		ConnSpec{Rule: RuleOneToOne}, SynSpec{})
	connectAll(t, managers, []GlobalID{1, 2}, []GlobalID{5, 6},
		ConnSpec{Rule: RuleOneToOne}, SynSpec{Model: "aux_synapse", Label: label})
	return grid, cm
}

func TestGetConnections_FilterBySynapseModel(t *testing.T) {
	_, cm := labeledNetwork(t)

	all, err := cm.GetConnections(ConnQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	static, err := cm.GetConnections(ConnQuery{SynapseModel: "static_synapse"})
	require.NoError(t, err)
	assert.Len(t, static, 3)
	for _, ci := range static {
		assert.Equal(t, "static_synapse", ci.SynapseModel)
	}

	aux, err := cm.GetConnections(ConnQuery{SynapseModel: "aux_synapse"})
	require.NoError(t, err)
	assert.Len(t, aux, 2)
	for _, ci := range aux {
		assert.Equal(t, 0.5, ci.Weight)
		assert.Equal(t, 2.0, ci.DelayMS)
	}
}

func TestGetConnections_FilterBySourcesTargetsAndLabel(t *testing.T) {
	_, cm := labeledNetwork(t)

	from1, err := cm.GetConnections(ConnQuery{Sources: []GlobalID{1}})
	require.NoError(t, err)
	assert.Len(t, from1, 2) // 1->4 static, 1->5 aux

	to5, err := cm.GetConnections(ConnQuery{Sources: []GlobalID{1}, Targets: []GlobalID{5}})
	require.NoError(t, err)
	require.Len(t, to5, 1)
	assert.Equal(t, GlobalID(5), to5[0].Target)

	label := int64(7)
	labeled, err := cm.GetConnections(ConnQuery{Label: &label})
	require.NoError(t, err)
	assert.Len(t, labeled, 2)

	other := int64(3)
	none, err := cm.GetConnections(ConnQuery{Label: &other})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetConnections_UnknownModel(t *testing.T) {
	_, cm := labeledNetwork(t)
	_, err := cm.GetConnections(ConnQuery{SynapseModel: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownSynapseModel)
}

func TestGetConnections_SkipsDisabled(t *testing.T) {
	grid, cm := labeledNetwork(t)
	cm.Disconnect(grid.Node(4), 1, 0, 0)

	infos, err := cm.GetConnections(ConnQuery{SynapseModel: "static_synapse"})
	require.NoError(t, err)
	assert.Len(t, infos, 2)
	for _, ci := range infos {
		assert.NotEqual(t, GlobalID(4), ci.Target)
	}
}

func TestSourcesOf_TargetsOf(t *testing.T) {
	_, cm := labeledNetwork(t)

	sources, err := cm.SourcesOf([]GlobalID{4, 5, 6}, "static_synapse")
	require.NoError(t, err)
	assert.Equal(t, [][]GlobalID{{1}, {2}, {3}}, sources)

	targets, err := cm.TargetsOf([]GlobalID{1, 2}, "aux_synapse")
	require.NoError(t, err)
	assert.Equal(t, [][]GlobalID{{5}, {6}}, targets)

	_, err = cm.SourcesOf([]GlobalID{4}, "ghost")
	assert.ErrorIs(t, err, ErrUnknownSynapseModel)
}
