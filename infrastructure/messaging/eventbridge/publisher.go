package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"citegraph/application/ports"
	"citegraph/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// DefaultSource is the EventBridge source of every citegraph event
const DefaultSource = "citegraph.api"

// EventBridge limits PutEvents to 10 entries per call
const maxEntriesPerCall = 10

// API is the subset of the EventBridge client the publisher uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher on AWS EventBridge
type Publisher struct {
	client       API
	eventBusName string
	source       string
	logger       *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName, source string, logger *zap.Logger) *Publisher {
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		logger:       logger,
	}
}

// Publish sends events in batches of at most 10
func (p *Publisher) Publish(ctx context.Context, domainEvents ...events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += maxEntriesPerCall {
		end := i + maxEntriesPerCall
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishBatch(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	sent := make([]events.DomainEvent, 0, len(domainEvents))

	for _, event := range domainEvents {
		eventData, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(eventData)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("citegraph:%s", event.GetAggregateID())},
		})
		sent = append(sent, event)
	}

	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(sent) {
				p.logger.Error("Failed to publish event",
					zap.String("eventType", sent[i].GetEventType()),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.eventBusName),
	)
	return nil
}
