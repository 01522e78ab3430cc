package services

import (
	"context"
	"sync"
	"testing"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	"citegraph/domain/events"
	domainservices "citegraph/domain/services"
	"citegraph/infrastructure/persistence/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	args := m.Called(evts)
	return args.Error(0)
}

type countingCitations struct {
	ports.CitationRepository
	mu        sync.Mutex
	adjacency int
}

func (c *countingCitations) GetAdjacent(ctx context.Context, ids []string, d valueobjects.Direction) ([]*entities.Citation, error) {
	c.mu.Lock()
	c.adjacency++
	c.mu.Unlock()
	return c.CitationRepository.GetAdjacent(ctx, ids, d)
}

type fixture struct {
	store      *memory.Store
	scores     *ScoreAggregator
	visibility *domainservices.VisibilityPolicy
	citations  *countingCitations
	expander   *GraphExpander
	papers     *PaperService
	votes      *VoteService
	publisher  *mockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	scores := NewScoreAggregator(store.Votes())
	visibility := domainservices.NewVisibilityPolicy(-0.5)
	citations := &countingCitations{CitationRepository: store.Citations()}
	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything).Return(nil).Maybe()

	return &fixture{
		store:      store,
		scores:     scores,
		visibility: visibility,
		citations:  citations,
		expander:   NewGraphExpander(store.Papers(), citations, scores, visibility, nil, nil, zap.NewNop()),
		papers:     NewPaperService(store, scores, visibility, publisher, nil, nil, zap.NewNop()),
		votes:      NewVoteService(store.Votes(), scores, publisher, nil, zap.NewNop()),
		publisher:  publisher,
	}
}

func (f *fixture) paper(t *testing.T, title string, year int) string {
	t.Helper()
	view, err := f.papers.AddPaper(context.Background(), entities.PaperInput{
		Title:    title,
		Authors:  []string{"Author of " + title},
		Year:     year,
		Keywords: []string{"topic"},
	})
	require.NoError(t, err)
	return view.ID
}

func (f *fixture) cite(t *testing.T, citing, cited string) string {
	t.Helper()
	c, err := f.papers.AddCitation(context.Background(), citing, cited)
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) vote(t *testing.T, user string, kind valueobjects.TargetKind, id string, value int) *VoteResult {
	t.Helper()
	req, err := entities.NewVoteRequest(user, string(kind), id, value)
	require.NoError(t, err)
	res, err := f.votes.Cast(context.Background(), req)
	require.NoError(t, err)
	return res
}

func intPtr(v int) *int { return &v }
