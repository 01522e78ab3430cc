// Package storetest holds the behavioural contract every storage backend
// must satisfy. Backend test files call Run with a constructor.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest
type Factory func(t *testing.T) ports.Store

// Run executes the full contract against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("papers", func(t *testing.T) { testPapers(t, newStore(t)) })
	t.Run("search", func(t *testing.T) { testSearch(t, newStore(t)) })
	t.Run("citations", func(t *testing.T) { testCitations(t, newStore(t)) })
	t.Run("adjacency", func(t *testing.T) { testAdjacency(t, newStore(t)) })
	t.Run("vote state machine", func(t *testing.T) { testVoteStateMachine(t, newStore(t)) })
	t.Run("vote on missing target", func(t *testing.T) { testVoteMissingTarget(t, newStore(t)) })
	t.Run("tally", func(t *testing.T) { testTally(t, newStore(t)) })
	t.Run("downvoted", func(t *testing.T) { testDownvoted(t, newStore(t)) })
	t.Run("concurrent toggles", func(t *testing.T) { testConcurrentToggles(t, newStore(t)) })
	t.Run("concurrent voters", func(t *testing.T) { testConcurrentVoters(t, newStore(t)) })
}

// MustPaper saves a minimal paper and returns its id
func MustPaper(t *testing.T, s ports.Store, title string, year int) string {
	t.Helper()
	p, err := entities.NewPaper(entities.PaperInput{
		Title:    title,
		Authors:  []string{"Author " + title},
		Abstract: "Abstract of " + title,
		Year:     year,
		Keywords: []string{"kw-" + title},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Papers().Save(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p.ID
}

// MustCite saves a citation and returns its id
func MustCite(t *testing.T, s ports.Store, citing, cited string) string {
	t.Helper()
	c, err := entities.NewCitation(citing, cited, nil)
	require.NoError(t, err)
	require.NoError(t, s.Citations().Save(context.Background(), c))
	require.NotEmpty(t, c.ID)
	return c.ID
}

func vote(t *testing.T, s ports.Store, user string, kind valueobjects.TargetKind, id string, value int) (valueobjects.VoteValue, error) {
	t.Helper()
	req, err := entities.NewVoteRequest(user, string(kind), id, value)
	require.NoError(t, err)
	return s.Votes().Apply(context.Background(), req)
}

func tallyOf(t *testing.T, s ports.Store, kind valueobjects.TargetKind, id string) valueobjects.Aggregate {
	t.Helper()
	got, err := s.Votes().Tally(context.Background(), kind, []string{id})
	require.NoError(t, err)
	return got[id]
}

func testPapers(t *testing.T, s ports.Store) {
	ctx := context.Background()
	older := MustPaper(t, s, "Older", 2019)
	time.Sleep(2 * time.Millisecond)
	newer := MustPaper(t, s, "Newer", 2021)
	sameYear := MustPaper(t, s, "Same year later", 2019)

	got, err := s.Papers().GetByID(ctx, newer)
	require.NoError(t, err)
	assert.Equal(t, "Newer", got.Title)
	assert.Equal(t, []string{"Author Newer"}, got.Authors)
	assert.Equal(t, 2021, got.Year)

	_, err = s.Papers().GetByID(ctx, "missing")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaperNotFound))

	batch, err := s.Papers().GetByIDs(ctx, []string{older, "missing", newer})
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.Contains(t, batch, older)
	assert.Contains(t, batch, newer)

	list, err := s.Papers().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, newer, list[0].ID)
	assert.Equal(t, sameYear, list[1].ID)
	assert.Equal(t, older, list[2].ID)
}

func testSearch(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := MustPaper(t, s, "Graph Neural Networks", 2020)
	MustPaper(t, s, "Residual Learning", 2016)

	found, err := s.Papers().Search(ctx, "graph", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a, found[0].ID)

	found, err = s.Papers().Search(ctx, "AUTHOR", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.Papers().Search(ctx, "author", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = s.Papers().Search(ctx, "nothing-matches", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func testCitations(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := MustPaper(t, s, "A", 2020)
	b := MustPaper(t, s, "B", 2019)

	id := MustCite(t, s, a, b)

	dup, err := entities.NewCitation(a, b, nil)
	require.NoError(t, err)
	err = s.Citations().Save(ctx, dup)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateCitation), "got %v", err)

	reverse := MustCite(t, s, b, a)
	assert.NotEqual(t, id, reverse)

	got, err := s.Citations().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, a, got.CitingID)
	assert.Equal(t, b, got.CitedID)

	dangling, err := entities.NewCitation(a, "missing", nil)
	require.NoError(t, err)
	err = s.Citations().Save(ctx, dangling)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaperNotFound), "got %v", err)

	adj, err := s.Citations().GetAdjacent(ctx, []string{a}, valueobjects.DirectionOutgoing)
	require.NoError(t, err)
	assert.Len(t, adj, 1, "duplicate insert must leave a single row")
}

func testAdjacency(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := MustPaper(t, s, "A", 2020)
	b := MustPaper(t, s, "B", 2019)
	c := MustPaper(t, s, "C", 2018)
	ab := MustCite(t, s, a, b)
	bc := MustCite(t, s, b, c)
	ca := MustCite(t, s, c, a)

	ids := func(cs []*entities.Citation) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.ID)
		}
		return out
	}

	out, err := s.Citations().GetAdjacent(ctx, []string{b}, valueobjects.DirectionOutgoing)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{bc}, ids(out))

	in, err := s.Citations().GetAdjacent(ctx, []string{b}, valueobjects.DirectionIncoming)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ab}, ids(in))

	both, err := s.Citations().GetAdjacent(ctx, []string{a, b}, valueobjects.DirectionBoth)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ab, bc, ca}, ids(both))

	none, err := s.Citations().GetAdjacent(ctx, nil, valueobjects.DirectionBoth)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testVoteStateMachine(t *testing.T, s ports.Store) {
	p := MustPaper(t, s, "Voted", 2020)
	kind := valueobjects.TargetPaper

	got, err := vote(t, s, "u1", kind, p, 0)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteNone, got, "clearing with no vote is a no-op")
	assert.Equal(t, valueobjects.Aggregate{}, tallyOf(t, s, kind, p))

	got, err = vote(t, s, "u1", kind, p, 1)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteUp, got)
	assert.Equal(t, valueobjects.NewAggregate(1, 0), tallyOf(t, s, kind, p))

	got, err = vote(t, s, "u1", kind, p, -1)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteDown, got)
	assert.Equal(t, valueobjects.NewAggregate(0, 1), tallyOf(t, s, kind, p))

	got, err = vote(t, s, "u1", kind, p, -1)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteNone, got, "same value toggles off")
	assert.Equal(t, valueobjects.Aggregate{}, tallyOf(t, s, kind, p))

	_, err = vote(t, s, "u1", kind, p, 1)
	require.NoError(t, err)
	got, err = vote(t, s, "u1", kind, p, 0)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteNone, got)
	assert.Equal(t, valueobjects.Aggregate{}, tallyOf(t, s, kind, p))

	mine, err := s.Votes().UserVotes(context.Background(), "u1", kind, []string{p})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func testVoteMissingTarget(t *testing.T, s ports.Store) {
	p := MustPaper(t, s, "Real", 2020)

	_, err := vote(t, s, "u1", valueobjects.TargetPaper, "missing", 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTargetNotFound), "got %v", err)

	_, err = vote(t, s, "u1", valueobjects.TargetEdge, p, 1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeTargetNotFound), "a paper id is not an edge id")

	got, err := vote(t, s, "u1", valueobjects.TargetPaper, "missing", 0)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VoteNone, got)

	assert.Equal(t, valueobjects.Aggregate{}, tallyOf(t, s, valueobjects.TargetPaper, "missing"))
}

func testTally(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := MustPaper(t, s, "A", 2020)
	b := MustPaper(t, s, "B", 2020)
	edge := MustCite(t, s, a, b)

	for user, v := range map[string]int{"u1": 1, "u2": 1, "u3": -1} {
		_, err := vote(t, s, user, valueobjects.TargetPaper, a, v)
		require.NoError(t, err)
	}
	_, err := vote(t, s, "u1", valueobjects.TargetEdge, edge, -1)
	require.NoError(t, err)

	got, err := s.Votes().Tally(ctx, valueobjects.TargetPaper, []string{a, b, "missing"})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Aggregate{Up: 2, Down: 1, Score: 1}, got[a])
	assert.Equal(t, valueobjects.Aggregate{}, got[b])
	assert.Equal(t, valueobjects.Aggregate{}, got["missing"])
	assert.Len(t, got, 3)

	edges, err := s.Votes().Tally(ctx, valueobjects.TargetEdge, []string{edge})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Aggregate{Up: 0, Down: 1, Score: -1}, edges[edge])

	mine, err := s.Votes().UserVotes(ctx, "u3", valueobjects.TargetPaper, []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, map[string]valueobjects.VoteValue{a: valueobjects.VoteDown}, mine)

	empty, err := s.Votes().Tally(ctx, valueobjects.TargetPaper, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDownvoted(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := MustPaper(t, s, "A", 2020)
	b := MustPaper(t, s, "B", 2020)
	c := MustPaper(t, s, "C", 2020)

	_, err := vote(t, s, "u1", valueobjects.TargetPaper, a, -1)
	require.NoError(t, err)
	_, err = vote(t, s, "u2", valueobjects.TargetPaper, a, -1)
	require.NoError(t, err)
	_, err = vote(t, s, "u1", valueobjects.TargetPaper, b, 1)
	require.NoError(t, err)
	_, err = vote(t, s, "u2", valueobjects.TargetPaper, c, -1)
	require.NoError(t, err)
	_, err = vote(t, s, "u2", valueobjects.TargetPaper, c, -1)
	require.NoError(t, err)

	flagged, err := s.Votes().Downvoted(ctx, valueobjects.TargetPaper)
	require.NoError(t, err)
	assert.Equal(t, map[string]valueobjects.Aggregate{a: valueobjects.NewAggregate(0, 2)}, flagged)
}

func testConcurrentToggles(t *testing.T, s ports.Store) {
	p := MustPaper(t, s, "Contended", 2020)
	const n = 21

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := entities.NewVoteRequest("same-user", "paper", p, 1)
			if _, err := s.Votes().Apply(context.Background(), req); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// An odd number of toggles from one user leaves exactly one vote.
	assert.Equal(t, valueobjects.NewAggregate(1, 0), tallyOf(t, s, valueobjects.TargetPaper, p))
}

func testConcurrentVoters(t *testing.T, s ports.Store) {
	p := MustPaper(t, s, "Popular", 2020)
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := 1
			if i%4 == 0 {
				value = -1
			}
			req, _ := entities.NewVoteRequest(fmt.Sprintf("user-%d", i), "paper", p, value)
			if _, err := s.Votes().Apply(context.Background(), req); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, valueobjects.NewAggregate(15, 5), tallyOf(t, s, valueobjects.TargetPaper, p))
}
