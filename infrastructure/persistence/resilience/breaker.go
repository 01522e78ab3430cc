// Package resilience wraps a storage backend in a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the storage circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been observed
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      10,
	}
}

// StateObserver is notified of breaker state transitions
type StateObserver func(name string, from, to gobreaker.State)

// BreakerStore guards every storage call with one circuit breaker. Only
// storage failures count against the breaker; domain errors such as
// TargetNotFound and caller cancellations are successes from its view.
type BreakerStore struct {
	inner  ports.Store
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

var _ ports.Store = (*BreakerStore)(nil)

// NewBreakerStore wraps inner
func NewBreakerStore(inner ports.Store, cfg BreakerConfig, logger *zap.Logger, observers ...StateObserver) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Storage circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			for _, o := range observers {
				o(name, from, to)
			}
		},
		IsSuccessful: isBackendHealthy,
	})
	return &BreakerStore{inner: inner, cb: cb, logger: logger}
}

// State returns the breaker's current state
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func isBackendHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		return appErr.Code != pkgerrors.CodeStorageUnavailable &&
			appErr.Type != pkgerrors.ErrorTypeDatabase &&
			appErr.Type != pkgerrors.ErrorTypeInternal
	}
	return false
}

func call[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Debug("Storage call rejected by breaker", zap.String("op", op), zap.Error(err))
		return zero, pkgerrors.ErrStorageUnavailable(op, err)
	}
	if err != nil {
		if pkgerrors.IsAppError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		return zero, pkgerrors.ErrStorageUnavailable(op, err)
	}
	return out.(T), nil
}

func exec(b *BreakerStore, op string, fn func() error) error {
	_, err := call(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Papers returns the guarded paper repository
func (b *BreakerStore) Papers() ports.PaperRepository { return papers{b, b.inner.Papers()} }

// Citations returns the guarded citation repository
func (b *BreakerStore) Citations() ports.CitationRepository {
	return citations{b, b.inner.Citations()}
}

// Votes returns the guarded vote ledger
func (b *BreakerStore) Votes() ports.VoteLedger { return votes{b, b.inner.Votes()} }

// Ping bypasses the breaker so readiness reflects the backend itself
func (b *BreakerStore) Ping(ctx context.Context) error { return b.inner.Ping(ctx) }

// Close closes the wrapped store
func (b *BreakerStore) Close() error { return b.inner.Close() }

type papers struct {
	b     *BreakerStore
	inner ports.PaperRepository
}

func (p papers) Save(ctx context.Context, paper *entities.Paper) error {
	return exec(p.b, "save paper", func() error { return p.inner.Save(ctx, paper) })
}

func (p papers) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	return call(p.b, "get paper", func() (*entities.Paper, error) { return p.inner.GetByID(ctx, id) })
}

func (p papers) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	return call(p.b, "get papers", func() (map[string]*entities.Paper, error) { return p.inner.GetByIDs(ctx, ids) })
}

func (p papers) List(ctx context.Context) ([]*entities.Paper, error) {
	return call(p.b, "list papers", func() ([]*entities.Paper, error) { return p.inner.List(ctx) })
}

func (p papers) Search(ctx context.Context, query string, limit int) ([]*entities.Paper, error) {
	return call(p.b, "search papers", func() ([]*entities.Paper, error) { return p.inner.Search(ctx, query, limit) })
}

type citations struct {
	b     *BreakerStore
	inner ports.CitationRepository
}

func (c citations) Save(ctx context.Context, citation *entities.Citation) error {
	return exec(c.b, "save citation", func() error { return c.inner.Save(ctx, citation) })
}

func (c citations) GetByID(ctx context.Context, id string) (*entities.Citation, error) {
	return call(c.b, "get citation", func() (*entities.Citation, error) { return c.inner.GetByID(ctx, id) })
}

func (c citations) GetAdjacent(ctx context.Context, paperIDs []string, direction valueobjects.Direction) ([]*entities.Citation, error) {
	return call(c.b, "get adjacent", func() ([]*entities.Citation, error) {
		return c.inner.GetAdjacent(ctx, paperIDs, direction)
	})
}

type votes struct {
	b     *BreakerStore
	inner ports.VoteLedger
}

func (v votes) Apply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error) {
	return call(v.b, "apply vote", func() (valueobjects.VoteValue, error) { return v.inner.Apply(ctx, req) })
}

func (v votes) Tally(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error) {
	return call(v.b, "tally", func() (map[string]valueobjects.Aggregate, error) { return v.inner.Tally(ctx, kind, ids) })
}

func (v votes) UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error) {
	return call(v.b, "user votes", func() (map[string]valueobjects.VoteValue, error) {
		return v.inner.UserVotes(ctx, userID, kind, ids)
	})
}

func (v votes) Downvoted(ctx context.Context, kind valueobjects.TargetKind) (map[string]valueobjects.Aggregate, error) {
	return call(v.b, "downvoted", func() (map[string]valueobjects.Aggregate, error) { return v.inner.Downvoted(ctx, kind) })
}
