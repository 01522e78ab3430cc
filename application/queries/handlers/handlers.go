package handlers

import (
	"context"
	"fmt"

	"citegraph/application/queries"
	"citegraph/application/queries/bus"
	"citegraph/application/services"
)

// PaperQueryHandler answers every paper listing query
type PaperQueryHandler struct {
	papers *services.PaperService
}

// NewPaperQueryHandler creates a new paper query handler
func NewPaperQueryHandler(papers *services.PaperService) *PaperQueryHandler {
	return &PaperQueryHandler{papers: papers}
}

// Handle dispatches on the concrete query type
func (h *PaperQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.ListPapersQuery:
		return h.papers.ListPapers(ctx, q.IncludeHidden, q.UserID)
	case queries.GetPaperQuery:
		return h.papers.GetPaper(ctx, q.PaperID, q.UserID)
	case queries.SearchPapersQuery:
		return h.papers.SearchPapers(ctx, q.Query, q.IncludeHidden, q.UserID)
	case queries.GetRelatedPapersQuery:
		return h.papers.RelatedPapers(ctx, q.PaperID, q.UserID, q.IncludeHidden)
	case queries.ListFlaggedPapersQuery:
		return h.papers.FlaggedPapers(ctx)
	default:
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, query)
	}
}

// ExpandGraphHandler handles ExpandGraphQuery
type ExpandGraphHandler struct {
	expander *services.GraphExpander
}

// NewExpandGraphHandler creates a new expand graph handler
func NewExpandGraphHandler(expander *services.GraphExpander) *ExpandGraphHandler {
	return &ExpandGraphHandler{expander: expander}
}

// Handle executes the query
func (h *ExpandGraphHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	q, ok := query.(queries.ExpandGraphQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, query)
	}
	return h.expander.Expand(ctx, services.ExpandRequest{
		SeedID:    q.SeedID,
		Depth:     q.Depth,
		UserID:    q.UserID,
		Direction: q.Direction,
	})
}

// Register wires every query handler into b
func Register(b *bus.QueryBus, papers *services.PaperService, expander *services.GraphExpander) error {
	paperHandler := NewPaperQueryHandler(papers)
	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.ListPapersQuery{}, paperHandler},
		{queries.GetPaperQuery{}, paperHandler},
		{queries.SearchPapersQuery{}, paperHandler},
		{queries.GetRelatedPapersQuery{}, paperHandler},
		{queries.ListFlaggedPapersQuery{}, paperHandler},
		{queries.ExpandGraphQuery{}, NewExpandGraphHandler(expander)},
	}
	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}
