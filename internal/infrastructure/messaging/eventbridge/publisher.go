// Package eventbridge publishes graph events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/events"
)

// maxBatch is the PutEvents entry limit.
const maxBatch = 10

// API is the subset of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher using AWS EventBridge.
type Publisher struct {
	client       API
	eventBusName string
	source       string
	batchSize    int
	logger       *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher. batchSize is clamped to 1..10.
func NewPublisher(client API, eventBusName, source string, batchSize int, logger *zap.Logger) *Publisher {
	if batchSize < 1 || batchSize > maxBatch {
		batchSize = maxBatch
	}
	if source == "" {
		source = "graphmind"
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		source:       source,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Publish sends a single event.
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of batchSize.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += p.batchSize {
		end := i + p.batchSize
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
		entry, err := p.entry(event)
		if err != nil {
			p.logger.Error("Failed to marshal graph event",
				zap.Error(err),
				zap.String("event_type", event.GetEventType()),
			)
			continue
		}
		entries = append(entries, entry)
		sent = append(sent, event)
	}
	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("putting %d graph events: %w", len(entries), err)
	}
	if result.FailedEntryCount > 0 {
		// Result entries are positional.
		for i, entry := range result.Entries {
			if entry.ErrorCode == nil || i >= len(sent) {
				continue
			}
			p.logger.Error("Graph event rejected",
				zap.String("event_type", sent[i].GetEventType()),
				zap.String("aggregate_id", sent[i].GetAggregateID()),
				zap.String("error_code", aws.ToString(entry.ErrorCode)),
				zap.String("error_message", aws.ToString(entry.ErrorMessage)),
			)
		}
		return fmt.Errorf("%d of %d graph events rejected", result.FailedEntryCount, len(entries))
	}

	p.logger.Debug("Graph events published",
		zap.Int("count", len(entries)),
		zap.String("event_bus", p.eventBusName),
	)
	return nil
}

func (p *Publisher) entry(event events.DomainEvent) (types.PutEventsRequestEntry, error) {
	detail, err := json.Marshal(event)
	if err != nil {
		return types.PutEventsRequestEntry{}, err
	}
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(p.eventBusName),
		Source:       aws.String(p.source),
		DetailType:   aws.String(event.GetEventType()),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(event.GetTimestamp()),
		Resources:    []string{"graphmind:" + event.GetAggregateID()},
	}, nil
}
