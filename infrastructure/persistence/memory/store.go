// Package memory implements the storage ports on process memory. It backs
// tests, local development and the static-catalog deployment.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"
)

type voteKey struct {
	userID string
	kind   valueobjects.TargetKind
	target string
}

type targetKey struct {
	kind   valueobjects.TargetKind
	target string
}

// Store keeps papers, citations and votes in maps guarded by one RWMutex.
// Vote application holds the write lock for the whole read-resolve-write
// sequence, which makes it atomic per key.
type Store struct {
	mu sync.RWMutex

	papers    map[string]*entities.Paper
	citations map[string]*entities.Citation
	pairs     map[[2]string]string
	outgoing  map[string][]string
	incoming  map[string][]string

	votes   map[voteKey]*entities.Vote
	tallies map[targetKey]valueobjects.Aggregate

	now   func() time.Time
	newID func() string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		papers:    make(map[string]*entities.Paper),
		citations: make(map[string]*entities.Citation),
		pairs:     make(map[[2]string]string),
		outgoing:  make(map[string][]string),
		incoming:  make(map[string][]string),
		votes:     make(map[voteKey]*entities.Vote),
		tallies:   make(map[targetKey]valueobjects.Aggregate),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     valueobjects.NewID,
	}
}

var _ ports.Store = (*Store)(nil)

// Papers returns the paper repository view
func (s *Store) Papers() ports.PaperRepository { return paperRepository{s} }

// Citations returns the citation repository view
func (s *Store) Citations() ports.CitationRepository { return citationRepository{s} }

// Votes returns the vote ledger view
func (s *Store) Votes() ports.VoteLedger { return voteLedger{s} }

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op
func (s *Store) Close() error { return nil }

type paperRepository struct{ s *Store }

func (r paperRepository) Save(ctx context.Context, paper *entities.Paper) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if paper.ID == "" {
		paper.ID = r.s.newID()
	}
	if _, exists := r.s.papers[paper.ID]; exists {
		return pkgerrors.NewConflictError("paper already exists").WithDetail("paper_id", paper.ID)
	}
	if paper.CreatedAt.IsZero() {
		paper.CreatedAt = r.s.now()
	}
	r.s.papers[paper.ID] = paper.Clone()
	return nil
}

func (r paperRepository) GetByID(ctx context.Context, id string) (*entities.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.papers[id]
	if !ok {
		return nil, pkgerrors.ErrPaperNotFound(id)
	}
	return p.Clone(), nil
}

func (r paperRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*entities.Paper, len(ids))
	for _, id := range ids {
		if p, ok := r.s.papers[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (r paperRepository) List(ctx context.Context) ([]*entities.Paper, error) {
	return r.Search(ctx, "", 0)
}

func (r paperRepository) Search(ctx context.Context, query string, limit int) ([]*entities.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Paper, 0, len(r.s.papers))
	for _, p := range r.s.papers {
		if p.Matches(query) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return entities.LessInListing(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type citationRepository struct{ s *Store }

func (r citationRepository) Save(ctx context.Context, c *entities.Citation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range []string{c.CitingID, c.CitedID} {
		if _, ok := r.s.papers[id]; !ok {
			return pkgerrors.ErrPaperNotFound(id)
		}
	}
	if _, dup := r.s.pairs[c.Pair()]; dup {
		return pkgerrors.ErrDuplicateCitation(c.CitingID, c.CitedID)
	}

	if c.ID == "" {
		c.ID = r.s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now()
	}
	cp := *c
	r.s.citations[c.ID] = &cp
	r.s.pairs[c.Pair()] = c.ID
	r.s.outgoing[c.CitingID] = append(r.s.outgoing[c.CitingID], c.ID)
	r.s.incoming[c.CitedID] = append(r.s.incoming[c.CitedID], c.ID)
	return nil
}

func (r citationRepository) GetByID(ctx context.Context, id string) (*entities.Citation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.citations[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("citation " + id)
	}
	cp := *c
	return &cp, nil
}

func (r citationRepository) GetAdjacent(ctx context.Context, paperIDs []string, direction valueobjects.Direction) ([]*entities.Citation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []*entities.Citation
	collect := func(ids []string) {
		for _, cid := range ids {
			if seen[cid] {
				continue
			}
			seen[cid] = true
			cp := *r.s.citations[cid]
			out = append(out, &cp)
		}
	}
	for _, pid := range paperIDs {
		if direction.FollowsOutgoing() {
			collect(r.s.outgoing[pid])
		}
		if direction.FollowsIncoming() {
			collect(r.s.incoming[pid])
		}
	}
	return out, nil
}

type voteLedger struct{ s *Store }

func (l voteLedger) Apply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error) {
	if err := ctx.Err(); err != nil {
		return valueobjects.VoteNone, err
	}
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	key := voteKey{userID: req.UserID, kind: req.TargetKind, target: req.TargetID}
	current := valueobjects.VoteNone
	existing, ok := l.s.votes[key]
	if ok {
		current = existing.Value
	}

	action, next := entities.ResolveVote(current, req.Value)
	if action.NeedsTarget() && !l.s.targetExists(req.TargetKind, req.TargetID) {
		return valueobjects.VoteNone, pkgerrors.ErrTargetNotFound(req.TargetKind.String(), req.TargetID)
	}

	tk := targetKey{kind: req.TargetKind, target: req.TargetID}
	tally := l.s.tallies[tk]
	now := l.s.now()

	switch action {
	case entities.VoteActionInsert:
		l.s.votes[key] = &entities.Vote{
			ID:         l.s.newID(),
			UserID:     req.UserID,
			TargetKind: req.TargetKind,
			TargetID:   req.TargetID,
			Value:      next,
			UpdatedAt:  now,
		}
		tally = tally.Add(next)
	case entities.VoteActionUpdate:
		tally = removeFrom(tally, existing.Value).Add(next)
		existing.Value = next
		existing.UpdatedAt = now
	case entities.VoteActionDelete:
		tally = removeFrom(tally, existing.Value)
		delete(l.s.votes, key)
	}

	if tally.IsZero() {
		delete(l.s.tallies, tk)
	} else {
		l.s.tallies[tk] = tally
	}
	return next, nil
}

func (l voteLedger) Tally(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	out := make(map[string]valueobjects.Aggregate, len(ids))
	for _, id := range ids {
		out[id] = l.s.tallies[targetKey{kind: kind, target: id}]
	}
	return out, nil
}

func (l voteLedger) UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	out := make(map[string]valueobjects.VoteValue)
	for _, id := range ids {
		if v, ok := l.s.votes[voteKey{userID: userID, kind: kind, target: id}]; ok {
			out[id] = v.Value
		}
	}
	return out, nil
}

func (l voteLedger) Downvoted(ctx context.Context, kind valueobjects.TargetKind) (map[string]valueobjects.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	out := make(map[string]valueobjects.Aggregate)
	for k, agg := range l.s.tallies {
		if k.kind == kind && agg.Down > 0 {
			out[k.target] = agg
		}
	}
	return out, nil
}

// targetExists must be called with the lock held
func (s *Store) targetExists(kind valueobjects.TargetKind, id string) bool {
	switch kind {
	case valueobjects.TargetPaper:
		_, ok := s.papers[id]
		return ok
	case valueobjects.TargetEdge:
		_, ok := s.citations[id]
		return ok
	}
	return false
}

func removeFrom(a valueobjects.Aggregate, v valueobjects.VoteValue) valueobjects.Aggregate {
	switch v {
	case valueobjects.VoteUp:
		return valueobjects.NewAggregate(a.Up-1, a.Down)
	case valueobjects.VoteDown:
		return valueobjects.NewAggregate(a.Up, a.Down-1)
	}
	return a
}
