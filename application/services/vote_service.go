package services

import (
	"context"
	"time"

	"citegraph/application/ports"
	"citegraph/domain/core/entities"
	"citegraph/domain/events"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// VoteService casts, updates and clears votes through the ledger and
// reports the resulting tally
type VoteService struct {
	votes     ports.VoteLedger
	scores    *ScoreAggregator
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewVoteService creates a new vote service
func NewVoteService(
	votes ports.VoteLedger,
	scores *ScoreAggregator,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *VoteService {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoteService{
		votes:     votes,
		scores:    scores,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		tracer:    otel.Tracer("citegraph.application.vote_service"),
		now:       time.Now,
	}
}

// Cast applies req and returns the user's resulting value with the target's
// fresh aggregate. A failed apply leaves the tally untouched.
func (s *VoteService) Cast(ctx context.Context, req entities.VoteRequest) (*VoteResult, error) {
	ctx, span := s.tracer.Start(ctx, "VoteService.Cast",
		trace.WithAttributes(
			attribute.String("target.kind", req.TargetKind.String()),
			attribute.String("target.id", req.TargetID),
			attribute.Int("vote.requested", req.Value.Int()),
		),
	)
	defer span.End()

	value, err := s.votes.Apply(ctx, req)
	if err != nil {
		s.metrics.RecordVote("error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to apply vote")
		return nil, err
	}

	counts, err := s.scores.ScoreOf(ctx, req.TargetKind, req.TargetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to read tally")
		return nil, err
	}

	action := "cast"
	if value.IsNone() {
		action = "retract"
	}
	s.metrics.RecordVote(action, nil)
	span.SetAttributes(attribute.Int("vote.result", value.Int()))

	s.logger.Debug("Vote applied",
		zap.String("userID", req.UserID),
		zap.String("targetKind", req.TargetKind.String()),
		zap.String("targetID", req.TargetID),
		zap.Int("requested", req.Value.Int()),
		zap.Int("result", value.Int()),
	)

	publish(ctx, s.publisher, s.metrics, s.logger,
		events.NewVoteChanged(req.UserID, req.TargetKind, req.TargetID, value, counts, s.now().UTC()))

	return &VoteResult{
		TargetKind: req.TargetKind.String(),
		TargetID:   req.TargetID,
		UserVote:   value.Int(),
		Counts:     counts,
	}, nil
}

// publish sends events after a successful commit. Failures are logged and
// counted but never fail the caller.
func publish(ctx context.Context, publisher ports.EventPublisher, metrics ports.Metrics, logger *zap.Logger, evts ...events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.Publish(ctx, evts...); err != nil {
		for _, e := range evts {
			metrics.RecordPublishFailure(e.GetEventType())
		}
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evts)),
			zap.String("firstType", evts[0].GetEventType()),
			zap.Error(err),
		)
	}
}
