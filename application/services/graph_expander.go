package services

import (
	"context"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/config"
	"citegraph/domain/core/aggregates"
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	domainservices "citegraph/domain/services"
	pkgerrors "citegraph/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ExpandRequest describes one neighbourhood expansion. A nil Depth selects
// the configured default and an empty Direction selects the default direction.
type ExpandRequest struct {
	SeedID    string
	Depth     *int
	UserID    string
	Direction string
}

// GraphExpander materialises bounded breadth-first neighbourhoods of the
// citation graph. Adjacency is fetched once per frontier.
type GraphExpander struct {
	papers     ports.PaperRepository
	citations  ports.CitationRepository
	scores     *ScoreAggregator
	visibility *domainservices.VisibilityPolicy
	config     *config.DomainConfig
	metrics    ports.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewGraphExpander creates a new graph expander
func NewGraphExpander(
	papers ports.PaperRepository,
	citations ports.CitationRepository,
	scores *ScoreAggregator,
	visibility *domainservices.VisibilityPolicy,
	cfg *config.DomainConfig,
	metrics ports.Metrics,
	logger *zap.Logger,
) *GraphExpander {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphExpander{
		papers:     papers,
		citations:  citations,
		scores:     scores,
		visibility: visibility,
		config:     cfg,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer("citegraph.application.graph_expander"),
	}
}

// Expand returns the canonical induced subgraph within depth hops of the seed
func (e *GraphExpander) Expand(ctx context.Context, req ExpandRequest) (*GraphSnapshot, error) {
	depth := e.config.DefaultExpandDepth
	if req.Depth != nil {
		depth = *req.Depth
	}
	if depth < 0 || depth > e.config.MaxExpandDepth {
		return nil, pkgerrors.ErrInvalidDepth(depth, e.config.MaxExpandDepth)
	}
	direction, err := valueobjects.ParseDirection(req.Direction, valueobjects.Direction(e.config.DefaultDirection))
	if err != nil {
		return nil, err
	}
	seedID := valueobjects.NormalizeID(req.SeedID)
	if seedID == "" {
		return nil, pkgerrors.NewValidationError("seed id is required")
	}

	ctx, span := e.tracer.Start(ctx, "GraphExpander.Expand",
		trace.WithAttributes(
			attribute.String("seed.id", seedID),
			attribute.Int("depth", depth),
			attribute.String("direction", string(direction)),
		),
	)
	defer span.End()
	start := time.Now()

	graph, err := e.traverse(ctx, seedID, depth, direction)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Traversal failed")
		return nil, err
	}

	snapshot, err := e.annotate(ctx, graph, req.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Annotation failed")
		return nil, err
	}
	snapshot.Depth = depth
	snapshot.Direction = string(direction)

	span.SetAttributes(
		attribute.Int("nodes", len(snapshot.Nodes)),
		attribute.Int("edges", len(snapshot.Edges)),
	)
	e.metrics.RecordExpansion(len(snapshot.Nodes), len(snapshot.Edges), time.Since(start))

	return snapshot, nil
}

// traverse runs the frontier-by-frontier search. After the last round the
// final frontier's adjacency is read once more so edges among the deepest
// nodes, and from them back into the visited set, are induced too.
func (e *GraphExpander) traverse(ctx context.Context, seedID string, depth int, direction valueobjects.Direction) (*aggregates.Subgraph, error) {
	if _, err := e.papers.GetByID(ctx, seedID); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.ErrNodeNotFound(seedID)
		}
		return nil, err
	}

	graph := aggregates.NewSubgraph(seedID)
	if depth == 0 {
		return graph, nil
	}

	frontier := []string{seedID}
	for round := 1; round <= depth && len(frontier) > 0; round++ {
		adjacent, err := e.citations.GetAdjacent(ctx, frontier, direction)
		if err != nil {
			return nil, err
		}

		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []string
		for _, c := range adjacent {
			graph.Consider(c)
			if direction.FollowsOutgoing() && inFrontier[c.CitingID] && graph.Visit(c.CitedID, round) {
				next = append(next, c.CitedID)
			}
			if direction.FollowsIncoming() && inFrontier[c.CitedID] && graph.Visit(c.CitingID, round) {
				next = append(next, c.CitingID)
			}
		}
		frontier = next
	}

	if len(frontier) > 0 {
		adjacent, err := e.citations.GetAdjacent(ctx, frontier, direction)
		if err != nil {
			return nil, err
		}
		for _, c := range adjacent {
			graph.Consider(c)
		}
	}

	e.logger.Debug("Expansion traversed",
		zap.String("seedID", seedID),
		zap.Int("depth", depth),
		zap.Int("nodes", graph.NodeCount()),
	)
	return graph, nil
}

// annotate loads papers, tallies and the caller's votes concurrently
func (e *GraphExpander) annotate(ctx context.Context, graph *aggregates.Subgraph, userID string) (*GraphSnapshot, error) {
	nodeIDs := graph.NodeIDs()
	edges := graph.Edges()
	edgeIDs := make([]string, len(edges))
	for i, c := range edges {
		edgeIDs[i] = c.ID
	}

	var (
		papers     map[string]*entities.Paper
		nodeScores map[string]valueobjects.Aggregate
		edgeScores map[string]valueobjects.Aggregate
		nodeVotes  = map[string]valueobjects.VoteValue{}
		edgeVotes  = map[string]valueobjects.VoteValue{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		papers, err = e.papers.GetByIDs(gctx, nodeIDs)
		return err
	})
	g.Go(func() error {
		var err error
		nodeScores, err = e.scores.ScoresFor(gctx, valueobjects.TargetPaper, nodeIDs)
		return err
	})
	g.Go(func() error {
		var err error
		edgeScores, err = e.scores.ScoresFor(gctx, valueobjects.TargetEdge, edgeIDs)
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			nodeVotes, err = e.scores.UserVotes(gctx, userID, valueobjects.TargetPaper, nodeIDs)
			return err
		})
		g.Go(func() error {
			var err error
			edgeVotes, err = e.scores.UserVotes(gctx, userID, valueobjects.TargetEdge, edgeIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &GraphSnapshot{
		SeedID: graph.SeedID(),
		Nodes:  make([]PaperView, 0, len(nodeIDs)),
		Edges:  make([]EdgeView, 0, len(edges)),
	}

	for _, id := range nodeIDs {
		p, ok := papers[id]
		if !ok {
			e.logger.Warn("Visited paper missing from batch read", zap.String("paperID", id))
			continue
		}
		agg := nodeScores[id]
		view := newPaperView(p, agg, e.visibility.IsHidden(agg.Score))
		d, _ := graph.DepthOf(id)
		view.Depth = &d
		if userID != "" {
			view.UserVote = userVotePtr(nodeVotes, id)
		}
		snapshot.Nodes = append(snapshot.Nodes, view)
	}

	for _, c := range edges {
		if papers[c.CitingID] == nil || papers[c.CitedID] == nil {
			continue
		}
		agg := edgeScores[c.ID]
		view := newEdgeView(c, agg, e.visibility.IsHidden(agg.Score))
		if userID != "" {
			view.UserVote = userVotePtr(edgeVotes, c.ID)
		}
		snapshot.Edges = append(snapshot.Edges, view)
	}

	return snapshot, nil
}
