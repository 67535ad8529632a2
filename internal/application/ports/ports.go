// Package ports declares the interfaces the graph view service depends on.
// Adapters in infrastructure implement them.
package ports

import (
	"context"

	"graphmind/internal/domain/events"
	"graphmind/internal/domain/graph"
)

// LinkRequest asks the store to relate two nodes.
type LinkRequest struct {
	FromID string         `json:"fromId" validate:"required"`
	ToID   string         `json:"toId" validate:"required,nefield=FromID"`
	Type   graph.LinkType `json:"type"`
	Notes  string         `json:"notes,omitempty"`
}

// LinkRef is the store's answer to a LinkRequest.
type LinkRef struct {
	ID     string         `json:"id"`
	FromID string         `json:"fromId"`
	ToID   string         `json:"toId"`
	Type   graph.LinkType `json:"type"`
	Notes  string         `json:"notes,omitempty"`
}

// Link converts the reference into a model link.
func (r LinkRef) Link() graph.Link {
	return graph.Link{ID: r.ID, SourceID: r.FromID, TargetID: r.ToID, Type: r.Type, Notes: r.Notes}
}

// GraphStore is the remote graph the diagram is synchronized with.
type GraphStore interface {
	// FetchGraph returns every node with its relationships, each node
	// listing its connections from its own side.
	FetchGraph(ctx context.Context) ([]graph.RawNode, error)

	// CreateNode creates a node and returns it with its assigned id.
	CreateNode(ctx context.Context, title, description string) (graph.Node, error)

	// LinkNodes creates one relationship.
	LinkNodes(ctx context.Context, req LinkRequest) (LinkRef, error)

	// DeleteNode deletes a node and, server-side, every relationship touching it.
	DeleteNode(ctx context.Context, id string) (string, error)

	// DeleteLink deletes one relationship.
	DeleteLink(ctx context.Context, id string) (string, error)
}

// EventPublisher defines the interface for publishing graph events.
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
