package cache

import (
	"context"
	"testing"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/infrastructure/persistence/memory"
	"citegraph/infrastructure/persistence/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", "v", 10))

	v, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(11 * time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)

	c.sweep()
	assert.Equal(t, 0, c.Len())
}

func TestInMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 60))
	require.NoError(t, c.Set(ctx, "b", 2, 60))
	require.NoError(t, c.Delete(ctx, "a"))
	_, ok := c.Get(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())

	c.Close()
	c.Close()
}

type countingPapers struct {
	mock.Mock
	ports.PaperRepository
}

func (c *countingPapers) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	c.Called(id)
	return c.PaperRepository.GetByID(ctx, id)
}

func (c *countingPapers) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	c.Called(ids)
	return c.PaperRepository.GetByIDs(ctx, ids)
}

func TestPaperRepository_ServesRepeatReadsFromCache(t *testing.T) {
	store := memory.NewStore()
	a := storetest.MustPaper(t, store, "A", 2020)
	b := storetest.MustPaper(t, store, "B", 2021)

	inner := &countingPapers{PaperRepository: store.Papers()}
	inner.On("GetByID", a).Return().Once()
	inner.On("GetByIDs", []string{b}).Return().Once()

	c := NewInMemoryCache(0)
	defer c.Close()
	repo := NewPaperRepository(inner, c, 60, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := repo.GetByID(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, "A", p.Title)
	}

	got, err := repo.GetByIDs(ctx, []string{a, b})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.GetByIDs(ctx, []string{a, b})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	inner.AssertExpectations(t)
}

func TestCachedStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store {
		c := NewInMemoryCache(0)
		t.Cleanup(c.Close)
		return NewCachedStore(memory.NewStore(), c, 60, zap.NewNop())
	})
}
