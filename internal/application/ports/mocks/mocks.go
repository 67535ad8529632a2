// Package mocks provides testify mocks for the application ports.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/events"
	"graphmind/internal/domain/graph"
)

// GraphStore is a mock ports.GraphStore.
type GraphStore struct {
	mock.Mock
}

var _ ports.GraphStore = (*GraphStore)(nil)

func (m *GraphStore) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]graph.RawNode), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *GraphStore) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	args := m.Called(ctx, title, description)
	return args.Get(0).(graph.Node), args.Error(1)
}

func (m *GraphStore) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(ports.LinkRef), args.Error(1)
}

func (m *GraphStore) DeleteNode(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *GraphStore) DeleteLink(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

// EventPublisher is a mock ports.EventPublisher.
type EventPublisher struct {
	mock.Mock
}

var _ ports.EventPublisher = (*EventPublisher)(nil)

func (m *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *EventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}
