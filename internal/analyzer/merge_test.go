package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refurd/portfolio-health-system/internal/email"
)

func groupOf(ids ...string) *Group {
	msgs := make([]*email.Message, len(ids))
	for i, id := range ids {
		msgs[i] = &email.Message{ID: id}
	}
	return &Group{Messages: msgs}
}

func messageIDs(g *Group) []string {
	out := make([]string, len(g.Messages))
	for i, m := range g.Messages {
		out[i] = m.ID
	}
	return out
}

func TestMergeConnectedSimplePair(t *testing.T) {
	groups := []*Group{groupOf("a"), groupOf("b"), groupOf("c")}
	connections := []Connection{{I: 0, J: 1, Score: 0.9}}

	merged := MergeConnected(groups, connections)

	require.Len(t, merged, 2)
	assert.Equal(t, []string{"a", "b"}, messageIDs(merged[0]))
	assert.Equal(t, []string{"c"}, messageIDs(merged[1]))
}

func TestMergeConnectedTransitiveChain(t *testing.T) {
	groups := []*Group{groupOf("a"), groupOf("b"), groupOf("c")}
	connections := []Connection{
		{I: 0, J: 1, Score: 0.9},
		{I: 1, J: 2, Score: 0.8},
	}

	merged := MergeConnected(groups, connections)

	require.Len(t, merged, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, messageIDs(merged[0]))
}

func TestMergeConnectedScoreOrderWins(t *testing.T) {
	// The 0-2 connection is strongest, so group 2 is absorbed into 0
	// first; the weaker 1-2 connection then resolves 2 to 0.
	groups := []*Group{groupOf("a"), groupOf("b"), groupOf("c")}
	connections := []Connection{
		{I: 1, J: 2, Score: 0.75},
		{I: 0, J: 2, Score: 0.95},
	}

	merged := MergeConnected(groups, connections)

	require.Len(t, merged, 1)
	assert.Equal(t, []string{"b", "a", "c"}, messageIDs(merged[0]))
}

func TestMergeConnectedRedundantConnectionIgnored(t *testing.T) {
	groups := []*Group{groupOf("a"), groupOf("b")}
	connections := []Connection{
		{I: 0, J: 1, Score: 0.9},
		{I: 0, J: 1, Score: 0.8},
		{I: 1, J: 0, Score: 0.75},
	}

	merged := MergeConnected(groups, connections)

	require.Len(t, merged, 1)
	assert.Equal(t, []string{"a", "b"}, messageIDs(merged[0]))
}

func TestMergeConnectedNoConnections(t *testing.T) {
	groups := []*Group{groupOf("a"), groupOf("b")}

	merged := MergeConnected(groups, nil)

	require.Len(t, merged, 2)
}

func TestMergeConnectedDeterministicTies(t *testing.T) {
	// Equal scores keep discovery order: 0-1 merges before 2-3.
	build := func() []*Group {
		return []*Group{groupOf("a"), groupOf("b"), groupOf("c"), groupOf("d")}
	}
	connections := []Connection{
		{I: 0, J: 1, Score: 0.8},
		{I: 2, J: 3, Score: 0.8},
	}

	first := MergeConnected(build(), connections)
	second := MergeConnected(build(), connections)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, messageIDs(first[0]), messageIDs(second[0]))
	assert.Equal(t, messageIDs(first[1]), messageIDs(second[1]))
}

func TestMergeConnectedOutOfRangeIndexIgnored(t *testing.T) {
	groups := []*Group{groupOf("a"), groupOf("b")}
	connections := []Connection{{I: 0, J: 5, Score: 0.9}}

	merged := MergeConnected(groups, connections)
	require.Len(t, merged, 2)
}
