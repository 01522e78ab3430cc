package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/infrastructure/persistence/memory"
	"citegraph/infrastructure/persistence/storetest"
	pkgerrors "citegraph/pkg/errors"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyStore struct {
	*memory.Store
	fail bool
}

func (f *flakyStore) Papers() ports.PaperRepository {
	return flakyPapers{PaperRepository: f.Store.Papers(), fail: &f.fail}
}

type flakyPapers struct {
	ports.PaperRepository
	fail *bool
}

func (f flakyPapers) List(ctx context.Context) ([]*entities.Paper, error) {
	if *f.fail {
		return nil, errors.New("connection reset by peer")
	}
	return f.PaperRepository.List(ctx)
}

func testConfig() BreakerConfig {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	cfg.Timeout = time.Hour
	return cfg
}

func TestBreakerStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.Store {
		return NewBreakerStore(memory.NewStore(), DefaultBreakerConfig("contract"), zap.NewNop())
	})
}

func TestBreakerStore_TripsOnStorageFailures(t *testing.T) {
	inner := &flakyStore{Store: memory.NewStore(), fail: true}
	var transitions []gobreaker.State
	b := NewBreakerStore(inner, testConfig(), zap.NewNop(), func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Papers().List(ctx)
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStorageUnavailable), "got %v", err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	inner.fail = false
	_, err := b.Papers().List(ctx)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStorageUnavailable))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerStore_DomainErrorsDoNotTrip(t *testing.T) {
	b := NewBreakerStore(memory.NewStore(), testConfig(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := b.Papers().GetByID(ctx, "missing")
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaperNotFound))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestIsBackendHealthy(t *testing.T) {
	assert.True(t, isBackendHealthy(nil))
	assert.True(t, isBackendHealthy(context.Canceled))
	assert.True(t, isBackendHealthy(pkgerrors.ErrDuplicateCitation("a", "b")))
	assert.False(t, isBackendHealthy(pkgerrors.ErrStorageUnavailable("x", errors.New("y"))))
	assert.False(t, isBackendHealthy(errors.New("io")))
}
