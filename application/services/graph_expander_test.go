package services

import (
	"context"
	"sort"
	"testing"

	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(s *GraphSnapshot) []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func edgePairs(s *GraphSnapshot) [][2]string {
	pairs := make([][2]string, len(s.Edges))
	for i, e := range s.Edges {
		pairs[i] = [2]string{e.CitingID, e.CitedID}
	}
	return pairs
}

func TestExpand_ChainInducedSubgraph(t *testing.T) {
	f := newFixture(t)
	a := f.paper(t, "A", 2020)
	b := f.paper(t, "B", 2020)
	c := f.paper(t, "C", 2020)
	d := f.paper(t, "D", 2020)
	f.cite(t, a, b)
	f.cite(t, b, c)
	f.cite(t, c, d)

	snap, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: b, Depth: intPtr(1)})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{a, b, c}, nodeIDs(snap))
	assert.Equal(t, b, snap.Nodes[0].ID)
	assert.Equal(t, 0, *snap.Nodes[0].Depth)
	assert.ElementsMatch(t, [][2]string{{a, b}, {b, c}}, edgePairs(snap))
	assert.Equal(t, 1, snap.Depth)
	assert.Equal(t, "both", snap.Direction)
}

func TestExpand_EdgesAmongLastFrontier(t *testing.T) {
	f := newFixture(t)
	s := f.paper(t, "S", 2020)
	x := f.paper(t, "X", 2020)
	y := f.paper(t, "Y", 2020)
	f.cite(t, s, x)
	f.cite(t, s, y)
	f.cite(t, x, y)

	snap, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: s, Depth: intPtr(1)})
	require.NoError(t, err)

	assert.Len(t, snap.Nodes, 3)
	assert.ElementsMatch(t, [][2]string{{s, x}, {s, y}, {x, y}}, edgePairs(snap))
	// one adjacency read for the round plus one for the final frontier
	assert.Equal(t, 2, f.citations.adjacency)
}

func TestExpand_CanonicalOrder(t *testing.T) {
	f := newFixture(t)
	seed := f.paper(t, "Seed", 2020)
	var ring []string
	for _, title := range []string{"P1", "P2", "P3", "P4"} {
		id := f.paper(t, title, 2020)
		ring = append(ring, id)
		f.cite(t, seed, id)
	}
	f.cite(t, ring[0], ring[1])
	f.cite(t, ring[2], ring[3])
	f.cite(t, ring[3], ring[0])

	first, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: seed, Depth: intPtr(2)})
	require.NoError(t, err)
	second, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: seed, Depth: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	expectedNodes := append([]string{}, ring...)
	sort.Strings(expectedNodes)
	assert.Equal(t, append([]string{seed}, expectedNodes...), nodeIDs(first))

	pairs := edgePairs(first)
	assert.Len(t, pairs, 7)
	assert.True(t, sort.SliceIsSorted(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	}))
}

func TestExpand_Directions(t *testing.T) {
	f := newFixture(t)
	a := f.paper(t, "A", 2020)
	b := f.paper(t, "B", 2020)
	c := f.paper(t, "C", 2020)
	f.cite(t, a, b)
	f.cite(t, b, c)

	tests := []struct {
		direction string
		want      []string
	}{
		{"both", []string{a, b, c}},
		{"outgoing", []string{b, c}},
		{"incoming", []string{a, b}},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			snap, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: b, Direction: tt.direction})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, nodeIDs(snap))
			assert.Len(t, snap.Edges, len(tt.want)-1)
		})
	}
}

func TestExpand_DepthZeroAndDefault(t *testing.T) {
	f := newFixture(t)
	a := f.paper(t, "A", 2020)
	b := f.paper(t, "B", 2020)
	c := f.paper(t, "C", 2020)
	f.cite(t, a, b)
	f.cite(t, b, c)

	snap, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: a, Depth: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, nodeIDs(snap))
	assert.Empty(t, snap.Edges)

	snap, err = f.expander.Expand(context.Background(), ExpandRequest{SeedID: a})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, nodeIDs(snap))
}

func TestExpand_Errors(t *testing.T) {
	f := newFixture(t)
	a := f.paper(t, "A", 2020)

	tests := []struct {
		name string
		req  ExpandRequest
		code string
	}{
		{"unknown seed", ExpandRequest{SeedID: "missing"}, pkgerrors.CodeNodeNotFound},
		{"negative depth", ExpandRequest{SeedID: a, Depth: intPtr(-1)}, pkgerrors.CodeInvalidDepth},
		{"depth above max", ExpandRequest{SeedID: a, Depth: intPtr(6)}, pkgerrors.CodeInvalidDepth},
		{"bad direction", ExpandRequest{SeedID: a, Direction: "sideways"}, pkgerrors.CodeInvalidDirection},
		{"empty seed", ExpandRequest{SeedID: "  "}, pkgerrors.CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expander.Expand(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, pkgerrors.CodeOf(err))
		})
	}
	assert.Equal(t, 0, f.citations.adjacency)
}

func TestExpand_Annotations(t *testing.T) {
	f := newFixture(t)
	a := f.paper(t, "A", 2020)
	b := f.paper(t, "B", 2020)
	edge := f.cite(t, a, b)

	f.vote(t, "u1", valueobjects.TargetPaper, a, 1)
	f.vote(t, "u2", valueobjects.TargetPaper, a, 1)
	f.vote(t, "u3", valueobjects.TargetPaper, a, -1)
	f.vote(t, "u1", valueobjects.TargetPaper, b, -1)
	f.vote(t, "u2", valueobjects.TargetEdge, edge, -1)

	snap, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: a, UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)

	seed := snap.Nodes[0]
	assert.Equal(t, a, seed.ID)
	assert.Equal(t, []int{2, 1, 1}, []int{seed.Up, seed.Down, seed.Score})
	assert.False(t, seed.Hidden)
	require.NotNil(t, seed.UserVote)
	assert.Equal(t, 1, *seed.UserVote)

	other := snap.Nodes[1]
	assert.Equal(t, -1, other.Score)
	assert.True(t, other.Hidden)
	assert.Equal(t, -1, *other.UserVote)

	e := snap.Edges[0]
	assert.Equal(t, edge, e.ID)
	assert.True(t, e.Hidden)
	require.NotNil(t, e.UserVote)
	assert.Equal(t, 0, *e.UserVote)

	anon, err := f.expander.Expand(context.Background(), ExpandRequest{SeedID: a})
	require.NoError(t, err)
	assert.Nil(t, anon.Nodes[0].UserVote)
}
