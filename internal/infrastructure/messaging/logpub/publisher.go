// Package logpub publishes graph events to the process log.
package logpub

import (
	"context"

	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/events"
)

// Publisher writes each event as one structured log line.
type Publisher struct {
	logger *zap.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a log publisher.
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Publish logs event.
func (p *Publisher) Publish(_ context.Context, event events.DomainEvent) error {
	p.logger.Info("Graph event",
		zap.String("eventType", event.GetEventType()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()),
		zap.Any("event", event),
	)
	return nil
}

// PublishBatch logs every event.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		_ = p.Publish(ctx, e)
	}
	return nil
}
