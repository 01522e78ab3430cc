package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	"citegraph/infrastructure/persistence/storetest"
	pkgerrors "citegraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "citegraph.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store {
		return openTestStore(t)
	})
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	id := storetest.MustPaper(t, s, "Durable", 2022)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.Papers().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Durable", p.Title)
	assert.Equal(t, []string{"kw-Durable"}, p.Keywords)
}

func TestSave_DuplicatePaperID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &entities.Paper{ID: "fixed", Title: "One", Authors: []string{"a"}}
	require.NoError(t, s.Papers().Save(ctx, p))

	again := &entities.Paper{ID: "fixed", Title: "Two", Authors: []string{"b"}}
	err := s.Papers().Save(ctx, again)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestPing_AfterClose(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "closed.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	err = s.Ping(context.Background())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStorageUnavailable))
}

func TestChunks(t *testing.T) {
	ids := make([]string, maxInParams*2+3)
	got := chunks(ids)
	require.Len(t, got, 3)
	assert.Len(t, got[2], 3)
	assert.Empty(t, chunks(nil))
}

func TestApply_ClearWithoutVote(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := storetest.MustPaper(t, s, "Untouched", 2021)

	for _, target := range []string{p, "missing"} {
		req, err := entities.NewVoteRequest("u1", "paper", target, 0)
		require.NoError(t, err)

		got, err := s.Votes().Apply(ctx, req)
		require.NoError(t, err, "target %s", target)
		assert.Equal(t, valueobjects.VoteNone, got)
	}

	mine, err := s.Votes().UserVotes(ctx, "u1", valueobjects.TargetPaper, []string{p})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestApply_ConcurrentMixedValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := storetest.MustPaper(t, s, "Contended", 2021)

	var wg sync.WaitGroup
	errs := make(chan error, 90)
	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func(value int) {
			defer wg.Done()
			req, err := entities.NewVoteRequest("u1", "paper", p, value)
			if err == nil {
				_, err = s.Votes().Apply(ctx, req)
			}
			errs <- err
		}(i%3 - 1)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	tally, err := s.Votes().Tally(ctx, valueobjects.TargetPaper, []string{p})
	require.NoError(t, err)
	agg := tally[p]
	assert.LessOrEqual(t, agg.Up+agg.Down, 1, "one vote per user at most")
}
