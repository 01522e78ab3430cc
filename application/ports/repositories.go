package ports

import (
	"context"
	"time"

	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	"citegraph/domain/events"
)

// PaperRepository defines the interface for paper persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type PaperRepository interface {
	// Save stores a new paper and assigns its id when empty
	Save(ctx context.Context, paper *entities.Paper) error

	// GetByID retrieves a paper, failing with PaperNotFound
	GetByID(ctx context.Context, id string) (*entities.Paper, error)

	// GetByIDs retrieves many papers in one pass; missing ids are omitted
	GetByIDs(ctx context.Context, ids []string) (map[string]*entities.Paper, error)

	// List returns every paper ordered by year desc, created desc, id
	List(ctx context.Context) ([]*entities.Paper, error)

	// Search returns papers whose title, abstract, keywords or authors contain
	// the query case-insensitively, in listing order, at most limit results
	Search(ctx context.Context, query string, limit int) ([]*entities.Paper, error)
}

// CitationRepository defines the interface for citation persistence
type CitationRepository interface {
	// Save stores a new citation and assigns its id. Fails with
	// DuplicateCitation when the ordered pair exists and PaperNotFound when
	// an endpoint is missing.
	Save(ctx context.Context, citation *entities.Citation) error

	// GetByID retrieves a citation
	GetByID(ctx context.Context, id string) (*entities.Citation, error)

	// GetAdjacent returns, in one pass, every citation with an endpoint in
	// paperIDs on the side selected by direction
	GetAdjacent(ctx context.Context, paperIDs []string, direction valueobjects.Direction) ([]*entities.Citation, error)
}

// VoteLedger stores at most one vote per (user, kind, target) and derives tallies
type VoteLedger interface {
	// Apply runs the vote state machine atomically for one key and returns
	// the user's resulting value
	Apply(ctx context.Context, req entities.VoteRequest) (valueobjects.VoteValue, error)

	// Tally returns aggregates for the ids in one pass. Ids without votes map
	// to the zero aggregate.
	Tally(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error)

	// UserVotes returns the caller's stored value for each id that has one
	UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error)

	// Downvoted returns aggregates for every target of kind with at least one downvote
	Downvoted(ctx context.Context, kind valueobjects.TargetKind) (map[string]valueobjects.Aggregate, error)
}

// Store bundles the repositories of one storage backend
type Store interface {
	Papers() PaperRepository
	Citations() CitationRepository
	Votes() VoteLedger

	// Ping checks that the backend is reachable
	Ping(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl int) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Metrics records application-level measurements
type Metrics interface {
	RecordVote(action string, err error)
	RecordExpansion(nodes, edges int, duration time.Duration)
	RecordPublishFailure(eventType string)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordVote(string, error)                {}
func (NopMetrics) RecordExpansion(int, int, time.Duration) {}
func (NopMetrics) RecordPublishFailure(string)             {}
