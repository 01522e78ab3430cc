package services

import (
	"context"

	"citegraph/application/ports"
	"citegraph/domain/core/valueobjects"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ScoreAggregator derives vote tallies. It is read-only over the ledger.
type ScoreAggregator struct {
	votes  ports.VoteLedger
	tracer trace.Tracer
}

// NewScoreAggregator creates a new score aggregator
func NewScoreAggregator(votes ports.VoteLedger) *ScoreAggregator {
	return &ScoreAggregator{
		votes:  votes,
		tracer: otel.Tracer("citegraph.application.score_aggregator"),
	}
}

// ScoreOf returns the aggregate of a single target, zero when it has no votes
func (s *ScoreAggregator) ScoreOf(ctx context.Context, kind valueobjects.TargetKind, id string) (valueobjects.Aggregate, error) {
	scores, err := s.ScoresFor(ctx, kind, []string{id})
	if err != nil {
		return valueobjects.Aggregate{}, err
	}
	return scores[id], nil
}

// ScoresFor returns aggregates for every id in one storage pass. Every
// requested id is present in the result.
func (s *ScoreAggregator) ScoresFor(ctx context.Context, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.Aggregate, error) {
	ctx, span := s.tracer.Start(ctx, "ScoreAggregator.ScoresFor",
		trace.WithAttributes(
			attribute.String("target.kind", kind.String()),
			attribute.Int("target.count", len(ids)),
		),
	)
	defer span.End()

	out := make(map[string]valueobjects.Aggregate, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	tallies, err := s.votes.Tally(ctx, kind, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, id := range ids {
		out[id] = tallies[id]
	}
	return out, nil
}

// UserVotes returns the caller's value for each id. Ids without a vote are
// absent, which reads as VoteNone.
func (s *ScoreAggregator) UserVotes(ctx context.Context, userID string, kind valueobjects.TargetKind, ids []string) (map[string]valueobjects.VoteValue, error) {
	if userID == "" || len(ids) == 0 {
		return map[string]valueobjects.VoteValue{}, nil
	}

	ctx, span := s.tracer.Start(ctx, "ScoreAggregator.UserVotes",
		trace.WithAttributes(
			attribute.String("target.kind", kind.String()),
			attribute.Int("target.count", len(ids)),
		),
	)
	defer span.End()

	votes, err := s.votes.UserVotes(ctx, userID, kind, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return votes, nil
}
