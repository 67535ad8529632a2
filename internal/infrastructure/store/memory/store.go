// Package memory is an in-process graph store. It reports relationships the
// way the remote GraphQL backend does, once from each endpoint, and is used
// for demos, the terminal UI and tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

type relationship struct {
	id     string
	typ    graph.LinkType
	notes  string
	fromID string
	toID   string
}

// Store keeps nodes and relationships in memory.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]graph.Node
	nodeOrder []string
	rels      map[string]relationship
	relOrder  []string

	titleFilter string
	newID       func() string
}

var _ ports.GraphStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithTitleFilter limits FetchGraph to nodes whose title contains filter,
// case-insensitively.
func WithTitleFilter(filter string) Option {
	return func(s *Store) { s.titleFilter = strings.ToLower(filter) }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes: make(map[string]graph.Node),
		rels:  make(map[string]relationship),
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchGraph returns every node with its outgoing then incoming
// relationships.
func (s *Store) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]graph.RawNode, 0, len(s.nodes))
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		if s.titleFilter != "" && !strings.Contains(strings.ToLower(n.Title), s.titleFilter) {
			continue
		}
		raw := graph.RawNode{ID: n.ID, Title: n.Title, Description: n.Description, Connections: []graph.RawConnection{}}
		for _, rid := range s.relOrder {
			if r := s.rels[rid]; r.fromID == id {
				raw.Connections = append(raw.Connections, s.connection(r, r.toID))
			}
		}
		for _, rid := range s.relOrder {
			if r := s.rels[rid]; r.toID == id {
				raw.Connections = append(raw.Connections, s.connection(r, r.fromID))
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *Store) connection(r relationship, otherID string) graph.RawConnection {
	other := s.nodes[otherID]
	return graph.RawConnection{
		Relationship: graph.RawRelationship{
			ID:    r.id,
			Type:  string(r.typ),
			Notes: r.notes,
			From:  graph.RawNodeRef{ID: r.fromID},
			To:    graph.RawNodeRef{ID: r.toID},
		},
		Node: graph.RawNodeSummary{ID: other.ID, Title: other.Title, Description: other.Description},
	}
}

// CreateNode stores a node under a fresh id.
func (s *Store) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	if err := ctx.Err(); err != nil {
		return graph.Node{}, err
	}
	if strings.TrimSpace(title) == "" {
		return graph.Node{}, errors.Validation(errors.CodeInvalidInput.String(), "Title is required").
			WithOperation("CreateNode").
			Build()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := graph.Node{ID: s.newID(), Title: title, Description: description}
	s.nodes[n.ID] = n
	s.nodeOrder = append(s.nodeOrder, n.ID)
	return n, nil
}

// LinkNodes stores a relationship between two existing nodes.
func (s *Store) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	if err := ctx.Err(); err != nil {
		return ports.LinkRef{}, err
	}
	typ := req.Type
	if typ == "" {
		typ = graph.DefaultLinkType
	}
	if !typ.Known() {
		return ports.LinkRef{}, errors.Validation(errors.CodeInvalidLinkType.String(), "Unknown link type").
			WithOperation("LinkNodes").
			WithDetails(string(typ)).
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{req.FromID, req.ToID} {
		if _, ok := s.nodes[id]; !ok {
			return ports.LinkRef{}, errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
				WithOperation("LinkNodes").
				WithResource("node").
				WithDetails(id).
				Build()
		}
	}

	r := relationship{id: s.newID(), typ: typ, notes: req.Notes, fromID: req.FromID, toID: req.ToID}
	s.rels[r.id] = r
	s.relOrder = append(s.relOrder, r.id)
	return ports.LinkRef{ID: r.id, FromID: r.fromID, ToID: r.toID, Type: r.typ, Notes: r.notes}, nil
}

// DeleteNode removes the node and every relationship touching it.
func (s *Store) DeleteNode(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return "", errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("DeleteNode").
			WithResource("node").
			WithDetails(id).
			Build()
	}
	kept := s.relOrder[:0]
	for _, rid := range s.relOrder {
		r := s.rels[rid]
		if r.fromID == id || r.toID == id {
			delete(s.rels, rid)
			continue
		}
		kept = append(kept, rid)
	}
	s.relOrder = kept

	delete(s.nodes, id)
	for i, nid := range s.nodeOrder {
		if nid == id {
			s.nodeOrder = append(s.nodeOrder[:i], s.nodeOrder[i+1:]...)
			break
		}
	}
	return id, nil
}

// DeleteLink removes one relationship.
func (s *Store) DeleteLink(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rels[id]; !ok {
		return "", errors.NotFound(errors.CodeLinkNotFound.String(), "Link does not exist").
			WithOperation("DeleteLink").
			WithResource("link").
			WithDetails(id).
			Build()
	}
	delete(s.rels, id)
	for i, rid := range s.relOrder {
		if rid == id {
			s.relOrder = append(s.relOrder[:i], s.relOrder[i+1:]...)
			break
		}
	}
	return id, nil
}
