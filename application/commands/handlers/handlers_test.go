package handlers

import (
	"context"
	"testing"

	"citegraph/application/commands"
	"citegraph/application/commands/bus"
	"citegraph/application/queries"
	querybus "citegraph/application/queries/bus"
	queryhandlers "citegraph/application/queries/handlers"
	"citegraph/application/services"
	domainservices "citegraph/domain/services"
	"citegraph/infrastructure/persistence/memory"
	pkgerrors "citegraph/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBuses(t *testing.T) (*bus.CommandBus, *querybus.QueryBus) {
	t.Helper()
	store := memory.NewStore()
	scores := services.NewScoreAggregator(store.Votes())
	visibility := domainservices.NewVisibilityPolicy(-0.5)
	papers := services.NewPaperService(store, scores, visibility, nil, nil, nil, zap.NewNop())
	votes := services.NewVoteService(store.Votes(), scores, nil, nil, zap.NewNop())
	expander := services.NewGraphExpander(store.Papers(), store.Citations(), scores, visibility, nil, nil, zap.NewNop())

	cb := bus.NewCommandBus(bus.LoggingMiddleware(zap.NewNop().Sugar()))
	require.NoError(t, Register(cb, votes, papers))
	qb := querybus.NewQueryBus(nil)
	require.NoError(t, queryhandlers.Register(qb, papers, expander))
	return cb, qb
}

func TestCommandsAndQueriesEndToEnd(t *testing.T) {
	cb, qb := newBuses(t)
	ctx := context.Background()

	add := func(title string, year int) string {
		out, err := cb.Send(ctx, commands.AddPaperCommand{Title: title, Authors: []string{"A. Author"}, Year: year})
		require.NoError(t, err)
		return out.(*services.PaperView).ID
	}
	a := add("Alpha", 2020)
	b := add("Beta", 2021)

	out, err := cb.Send(ctx, commands.AddCitationCommand{CitingID: a, CitedID: b})
	require.NoError(t, err)
	citation := out.(*commands.AddCitationResult)
	assert.Equal(t, a, citation.CitingID)

	out, err = cb.Send(ctx, commands.CastVoteCommand{TargetKind: "edge", TargetID: citation.ID, UserID: "u", Value: 1})
	require.NoError(t, err)
	vote := out.(*services.VoteResult)
	assert.Equal(t, 1, vote.UserVote)
	assert.Equal(t, 1, vote.Counts.Up)

	out, err = qb.Ask(ctx, queries.ExpandGraphQuery{SeedID: a, UserID: "u"})
	require.NoError(t, err)
	snap := out.(*services.GraphSnapshot)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, 1, *snap.Edges[0].UserVote)

	out, err = qb.Ask(ctx, queries.ListPapersQuery{})
	require.NoError(t, err)
	list := out.([]services.PaperView)
	assert.Equal(t, []string{b, a}, []string{list[0].ID, list[1].ID})

	out, err = qb.Ask(ctx, queries.GetRelatedPapersQuery{PaperID: b})
	require.NoError(t, err)
	assert.Len(t, out.(*services.RelatedPapers).CitedBy, 1)

	out, err = qb.Ask(ctx, queries.ListFlaggedPapersQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCommandValidation(t *testing.T) {
	cb, qb := newBuses(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  bus.Command
		code string
	}{
		{"vote value", commands.CastVoteCommand{TargetKind: "paper", TargetID: "p", UserID: "u", Value: 5}, pkgerrors.CodeInvalidVoteValue},
		{"vote value before kind", commands.CastVoteCommand{TargetKind: "nope", Value: 5}, pkgerrors.CodeInvalidVoteValue},
		{"vote kind", commands.CastVoteCommand{TargetKind: "author", TargetID: "p", UserID: "u", Value: 1}, pkgerrors.CodeInvalidTargetKind},
		{"vote target", commands.CastVoteCommand{TargetKind: "paper", TargetID: "p", UserID: "u", Value: 1}, pkgerrors.CodeTargetNotFound},
		{"paper title", commands.AddPaperCommand{Authors: []string{"x"}}, pkgerrors.CodeValidationFailed},
		{"paper url", commands.AddPaperCommand{Title: "t", Authors: []string{"x"}, URL: "not a url"}, pkgerrors.CodeValidationFailed},
		{"citation ids", commands.AddCitationCommand{CitingID: "a"}, pkgerrors.CodeValidationFailed},
		{"self citation", commands.AddCitationCommand{CitingID: "a", CitedID: "a"}, pkgerrors.CodeInvalidCitation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cb.Send(ctx, tt.cmd)
			require.Error(t, err)
			assert.Equal(t, tt.code, pkgerrors.CodeOf(err))
		})
	}

	_, err := qb.Ask(ctx, queries.ExpandGraphQuery{SeedID: "ghost"})
	assert.Equal(t, pkgerrors.CodeNodeNotFound, pkgerrors.CodeOf(err))

	depth := 9
	_, err = qb.Ask(ctx, queries.ExpandGraphQuery{SeedID: "ghost", Depth: &depth})
	assert.Equal(t, pkgerrors.CodeInvalidDepth, pkgerrors.CodeOf(err))
}
