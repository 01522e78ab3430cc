// Package messaging holds event publishers that need no cloud transport.
package messaging

import (
	"context"

	"citegraph/application/ports"
	"citegraph/domain/events"

	"go.uber.org/zap"
)

// LogPublisher writes domain events to the log. It is the default publisher
// when no event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher creates a new logging publisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs each event at info level
func (p *LogPublisher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	for _, e := range evts {
		p.logger.Info("Domain event",
			zap.String("eventType", e.GetEventType()),
			zap.String("aggregateID", e.GetAggregateID()),
			zap.Time("timestamp", e.GetTimestamp()),
			zap.Any("event", e),
		)
	}
	return nil
}
