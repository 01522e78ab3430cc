package services

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"citegraph/application/ports"
	"citegraph/domain/config"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	"citegraph/domain/events"
	domainservices "citegraph/domain/services"
	pkgerrors "citegraph/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PaperService ingests papers and citations and serves the paper listings
type PaperService struct {
	store      ports.Store
	scores     *ScoreAggregator
	visibility *domainservices.VisibilityPolicy
	publisher  ports.EventPublisher
	config     *config.DomainConfig
	metrics    ports.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewPaperService creates a new paper service
func NewPaperService(
	store ports.Store,
	scores *ScoreAggregator,
	visibility *domainservices.VisibilityPolicy,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) *PaperService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperService{
		store:      store,
		scores:     scores,
		visibility: visibility,
		publisher:  publisher,
		config:     cfg,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("citegraph.application.paper_service"),
	}
}

// AddPaper validates and stores a new paper
func (s *PaperService) AddPaper(ctx context.Context, in entities.PaperInput) (*PaperView, error) {
	paper, err := entities.NewPaper(in, s.config)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "PaperService.AddPaper")
	defer span.End()

	if err := s.store.Papers().Save(ctx, paper); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("paper.id", paper.ID))

	s.logger.Info("Paper added", zap.String("paperID", paper.ID), zap.Int("year", paper.Year))
	publish(ctx, s.publisher, s.metrics, s.logger,
		events.NewPaperAdded(paper.ID, paper.Title, paper.Year, time.Now().UTC()))

	view := newPaperView(paper, valueobjects.Aggregate{}, s.visibility.IsHidden(0))
	return &view, nil
}

// AddCitation stores a directed citation between two existing papers
func (s *PaperService) AddCitation(ctx context.Context, citingID, citedID string) (*entities.Citation, error) {
	citation, err := entities.NewCitation(citingID, citedID, s.config)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "PaperService.AddCitation",
		trace.WithAttributes(
			attribute.String("citing.id", citation.CitingID),
			attribute.String("cited.id", citation.CitedID),
		),
	)
	defer span.End()

	if err := s.store.Citations().Save(ctx, citation); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("Citation added",
		zap.String("citationID", citation.ID),
		zap.String("citingID", citation.CitingID),
		zap.String("citedID", citation.CitedID),
	)
	publish(ctx, s.publisher, s.metrics, s.logger,
		events.NewCitationAdded(citation.ID, citation.CitingID, citation.CitedID, time.Now().UTC()))

	return citation, nil
}

// GetPaper returns one paper with its tally. Direct lookups are never
// filtered; the hidden flag tells the caller how listings treat it.
func (s *PaperService) GetPaper(ctx context.Context, paperID, userID string) (*PaperView, error) {
	paperID = valueobjects.NormalizeID(paperID)
	if paperID == "" {
		return nil, pkgerrors.NewValidationError("paper id is required")
	}

	paper, err := s.store.Papers().GetByID(ctx, paperID)
	if err != nil {
		return nil, err
	}

	views, err := s.annotate(ctx, []*entities.Paper{paper}, userID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListPapers returns every paper in listing order, without hidden ones
// unless includeHidden is set
func (s *PaperService) ListPapers(ctx context.Context, includeHidden bool, userID string) ([]PaperView, error) {
	ctx, span := s.tracer.Start(ctx, "PaperService.ListPapers",
		trace.WithAttributes(attribute.Bool("include_hidden", includeHidden)),
	)
	defer span.End()

	papers, err := s.store.Papers().List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	views, err := s.annotate(ctx, papers, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.filterVisible(views, includeHidden), nil
}

// SearchPapers returns papers matching query in listing order. An empty
// query matches nothing.
func (s *PaperService) SearchPapers(ctx context.Context, query string, includeHidden bool, userID string) ([]PaperView, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) > s.config.MaxSearchQueryLength {
		return nil, pkgerrors.NewValidationError("search query is too long").
			WithDetail("max_length", s.config.MaxSearchQueryLength)
	}
	if query == "" {
		return []PaperView{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "PaperService.SearchPapers",
		trace.WithAttributes(attribute.String("query", query)),
	)
	defer span.End()

	papers, err := s.store.Papers().Search(ctx, query, s.config.MaxSearchResults)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	views, err := s.annotate(ctx, papers, userID)
	if err != nil {
		return nil, err
	}
	return s.filterVisible(views, includeHidden), nil
}

// RelatedPapers returns the papers the given paper cites and the papers
// citing it, each in listing order
func (s *PaperService) RelatedPapers(ctx context.Context, paperID, userID string, includeHidden bool) (*RelatedPapers, error) {
	paperID = valueobjects.NormalizeID(paperID)
	if paperID == "" {
		return nil, pkgerrors.NewValidationError("paper id is required")
	}

	ctx, span := s.tracer.Start(ctx, "PaperService.RelatedPapers",
		trace.WithAttributes(attribute.String("paper.id", paperID)),
	)
	defer span.End()

	if _, err := s.store.Papers().GetByID(ctx, paperID); err != nil {
		return nil, err
	}

	adjacent, err := s.store.Citations().GetAdjacent(ctx, []string{paperID}, valueobjects.DirectionBoth)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	citesSet := make(map[string]bool)
	citedBySet := make(map[string]bool)
	var ids []string
	for _, c := range adjacent {
		if c.CitingID == paperID && !citesSet[c.CitedID] {
			citesSet[c.CitedID] = true
			ids = append(ids, c.CitedID)
		}
		if c.CitedID == paperID && !citedBySet[c.CitingID] {
			citedBySet[c.CitingID] = true
			ids = append(ids, c.CitingID)
		}
	}

	byID, err := s.store.Papers().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	papers := make([]*entities.Paper, 0, len(byID))
	for _, p := range byID {
		papers = append(papers, p)
	}
	sortPapers(papers)

	views, err := s.annotate(ctx, papers, userID)
	if err != nil {
		return nil, err
	}
	views = s.filterVisible(views, includeHidden)

	related := &RelatedPapers{PaperID: paperID, Cites: []PaperView{}, CitedBy: []PaperView{}}
	for _, v := range views {
		if citesSet[v.ID] {
			related.Cites = append(related.Cites, v)
		}
		if citedBySet[v.ID] {
			related.CitedBy = append(related.CitedBy, v)
		}
	}
	return related, nil
}

// FlaggedPapers is the moderation view: every paper with at least one
// downvote, lowest score first, hidden ones included and marked
func (s *PaperService) FlaggedPapers(ctx context.Context) ([]PaperView, error) {
	ctx, span := s.tracer.Start(ctx, "PaperService.FlaggedPapers")
	defer span.End()

	downvoted, err := s.store.Votes().Downvoted(ctx, valueobjects.TargetPaper)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(downvoted) == 0 {
		return []PaperView{}, nil
	}

	ids := make([]string, 0, len(downvoted))
	for id := range downvoted {
		ids = append(ids, id)
	}
	byID, err := s.store.Papers().GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	papers := make([]*entities.Paper, 0, len(byID))
	for _, p := range byID {
		papers = append(papers, p)
	}
	sort.Slice(papers, func(i, j int) bool {
		si, sj := downvoted[papers[i].ID].Score, downvoted[papers[j].ID].Score
		if si != sj {
			return si < sj
		}
		return entities.LessInListing(papers[i], papers[j])
	})

	views := make([]PaperView, 0, len(papers))
	for _, p := range papers {
		agg := downvoted[p.ID]
		views = append(views, newPaperView(p, agg, s.visibility.IsHidden(agg.Score)))
	}
	return views, nil
}

// annotate attaches tallies, hidden flags and the caller's votes, keeping
// the order of papers
func (s *PaperService) annotate(ctx context.Context, papers []*entities.Paper, userID string) ([]PaperView, error) {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}

	var (
		tallies map[string]valueobjects.Aggregate
		votes   = map[string]valueobjects.VoteValue{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tallies, err = s.scores.ScoresFor(gctx, valueobjects.TargetPaper, ids)
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			votes, err = s.scores.UserVotes(gctx, userID, valueobjects.TargetPaper, ids)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	views := make([]PaperView, 0, len(papers))
	for _, p := range papers {
		agg := tallies[p.ID]
		view := newPaperView(p, agg, s.visibility.IsHidden(agg.Score))
		if userID != "" {
			view.UserVote = userVotePtr(votes, p.ID)
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *PaperService) filterVisible(views []PaperView, includeHidden bool) []PaperView {
	out := make([]PaperView, 0, len(views))
	for _, v := range views {
		if s.visibility.Shown(v.Score, includeHidden) {
			out = append(out, v)
		}
	}
	return out
}

func sortPapers(papers []*entities.Paper) {
	sort.Slice(papers, func(i, j int) bool {
		return entities.LessInListing(papers[i], papers[j])
	})
}
