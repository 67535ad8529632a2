// Package events defines the graph mutation events published after the
// remote store confirmed a change.
package events

import "time"

// DomainEvent is the base interface for all graph events.
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Event type names.
const (
	TypeNodeCreated = "node.created"
	TypeNodesLinked = "nodes.linked"
	TypeNodeDeleted = "node.deleted"
	TypeLinkDeleted = "link.deleted"
)

// BaseEvent provides common event fields.
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func base(aggregateID, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{AggregateID: aggregateID, EventType: eventType, Timestamp: ts, Version: 1}
}

// NodeCreated is raised when the store created a node.
type NodeCreated struct {
	BaseEvent
	NodeID string `json:"node_id"`
	Title  string `json:"title"`
}

// NewNodeCreated creates a NodeCreated event.
func NewNodeCreated(nodeID, title string, ts time.Time) NodeCreated {
	return NodeCreated{BaseEvent: base(nodeID, TypeNodeCreated, ts), NodeID: nodeID, Title: title}
}

// NodesLinked is raised for every link the store accepted.
type NodesLinked struct {
	BaseEvent
	LinkID   string `json:"link_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

// NewNodesLinked creates a NodesLinked event.
func NewNodesLinked(linkID, sourceID, targetID, linkType string, ts time.Time) NodesLinked {
	return NodesLinked{
		BaseEvent: base(linkID, TypeNodesLinked, ts),
		LinkID:    linkID,
		SourceID:  sourceID,
		TargetID:  targetID,
		Type:      linkType,
	}
}

// NodeDeleted is raised when a node and its links were deleted.
type NodeDeleted struct {
	BaseEvent
	NodeID       string   `json:"node_id"`
	RemovedLinks []string `json:"removed_links,omitempty"`
}

// NewNodeDeleted creates a NodeDeleted event.
func NewNodeDeleted(nodeID string, removedLinks []string, ts time.Time) NodeDeleted {
	return NodeDeleted{BaseEvent: base(nodeID, TypeNodeDeleted, ts), NodeID: nodeID, RemovedLinks: removedLinks}
}

// LinkDeleted is raised when a single link was deleted.
type LinkDeleted struct {
	BaseEvent
	LinkID string `json:"link_id"`
}

// NewLinkDeleted creates a LinkDeleted event.
func NewLinkDeleted(linkID string, ts time.Time) LinkDeleted {
	return LinkDeleted{BaseEvent: base(linkID, TypeLinkDeleted, ts), LinkID: linkID}
}
