package cache

import (
	"context"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"

	"go.uber.org/zap"
)

// PaperRepository caches paper reads. Papers are immutable once stored, so
// entries never need invalidation; the TTL only bounds memory.
type PaperRepository struct {
	ports.PaperRepository
	cache  ports.Cache
	ttl    int
	logger *zap.Logger
}

var _ ports.PaperRepository = (*PaperRepository)(nil)

// NewPaperRepository wraps inner with cache. ttl is in seconds.
func NewPaperRepository(inner ports.PaperRepository, cache ports.Cache, ttl int, logger *zap.Logger) *PaperRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperRepository{PaperRepository: inner, cache: cache, ttl: ttl, logger: logger}
}

func paperKey(id string) string { return "paper:" + id }

// GetByID serves from cache when possible
func (r *PaperRepository) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	if v, ok := r.cache.Get(ctx, paperKey(id)); ok {
		return v.(*entities.Paper).Clone(), nil
	}
	p, err := r.PaperRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, p)
	return p, nil
}

// GetByIDs serves cached papers and loads only the misses
func (r *PaperRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	out := make(map[string]*entities.Paper, len(ids))
	var misses []string
	for _, id := range ids {
		if v, ok := r.cache.Get(ctx, paperKey(id)); ok {
			out[id] = v.(*entities.Paper).Clone()
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := r.PaperRepository.GetByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		out[id] = p
		r.store(ctx, p)
	}
	return out, nil
}

// Save writes through and primes the cache
func (r *PaperRepository) Save(ctx context.Context, paper *entities.Paper) error {
	if err := r.PaperRepository.Save(ctx, paper); err != nil {
		return err
	}
	r.store(ctx, paper)
	return nil
}

func (r *PaperRepository) store(ctx context.Context, p *entities.Paper) {
	if err := r.cache.Set(ctx, paperKey(p.ID), p.Clone(), r.ttl); err != nil {
		r.logger.Warn("Failed to cache paper", zap.String("paperID", p.ID), zap.Error(err))
	}
}

// CachedStore is a ports.Store whose paper reads go through a cache
type CachedStore struct {
	ports.Store
	papers *PaperRepository
}

// NewCachedStore wraps store's paper repository with cache
func NewCachedStore(store ports.Store, cache ports.Cache, ttl int, logger *zap.Logger) *CachedStore {
	return &CachedStore{
		Store:  store,
		papers: NewPaperRepository(store.Papers(), cache, ttl, logger),
	}
}

// Papers returns the caching paper repository
func (s *CachedStore) Papers() ports.PaperRepository { return s.papers }
