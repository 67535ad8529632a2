package graph

import (
	"fmt"
	"sync"

	"graphmind/internal/errors"
)

// Model is the canonical in-memory graph. It is safe for concurrent use.
type Model struct {
	mu sync.RWMutex

	nodes     map[string]Node
	nodeOrder []string

	links     map[string]Link    // by link id
	pairs     map[PairKey]string // pair -> link id
	linkOrder []string

	// adjacency maps a node id to the ids of links touching it, in insertion order.
	adjacency map[string][]string
}

// NewModel builds a model from a snapshot. The snapshot is assumed to come
// from Normalize; duplicate or dangling entries are skipped.
func NewModel(snap Snapshot) *Model {
	m := &Model{}
	m.reset(snap)
	return m
}

// Replace discards the current contents and rebuilds from snap.
func (m *Model) Replace(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset(snap)
}

func (m *Model) reset(snap Snapshot) {
	m.nodes = make(map[string]Node, len(snap.Nodes))
	m.nodeOrder = make([]string, 0, len(snap.Nodes))
	m.links = make(map[string]Link, len(snap.Links))
	m.pairs = make(map[PairKey]string, len(snap.Links))
	m.linkOrder = make([]string, 0, len(snap.Links))
	m.adjacency = make(map[string][]string, len(snap.Nodes))

	for _, n := range snap.Nodes {
		if n.ID == "" {
			continue
		}
		if _, dup := m.nodes[n.ID]; dup {
			continue
		}
		m.nodes[n.ID] = n
		m.nodeOrder = append(m.nodeOrder, n.ID)
	}
	for _, l := range snap.Links {
		_, _ = m.insertLink(l)
	}
}

// Snapshot returns a copy of the graph in insertion order.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Nodes: make([]Node, 0, len(m.nodeOrder)),
		Links: make([]Link, 0, len(m.linkOrder)),
	}
	for _, id := range m.nodeOrder {
		snap.Nodes = append(snap.Nodes, m.nodes[id])
	}
	for _, id := range m.linkOrder {
		snap.Links = append(snap.Links, m.links[id])
	}
	return snap
}

// Len returns the number of nodes and links.
func (m *Model) Len() (nodes, links int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes), len(m.links)
}

// Node returns the node with id.
func (m *Model) Node(id string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// HasNode reports whether id is in the model.
func (m *Model) HasNode(id string) bool {
	_, ok := m.Node(id)
	return ok
}

// Link returns the link with id.
func (m *Model) Link(id string) (Link, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.links[id]
	return l, ok
}

// NeighborsOf returns the nodes directly linked to id, excluding id itself,
// each at most once, in link insertion order. A neighbor whose node object is
// missing is returned as a stub carrying only its id.
func (m *Model) NeighborsOf(id string) []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	linkIDs := m.adjacency[id]
	neighbors := make([]Node, 0, len(linkIDs))
	seen := make(map[string]struct{}, len(linkIDs))
	for _, lid := range linkIDs {
		other := m.links[lid].Other(id)
		if other == id {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}

		n, ok := m.nodes[other]
		if !ok {
			n = Node{ID: other, Title: other}
		}
		neighbors = append(neighbors, n)
	}
	return neighbors
}

// IsNeighbor reports whether a and b share a link.
func (m *Model) IsNeighbor(a, b string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pairs[NewPairKey(a, b)]
	return ok && a != b
}

// AddNode inserts a node. Empty and duplicate ids are rejected.
func (m *Model) AddNode(n Node) error {
	if n.ID == "" {
		return errors.Validation(errors.CodeMissingID.String(), "Node without id").
			WithOperation("AddNode").
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.nodes[n.ID]; dup {
		return errors.Invariant(errors.CodeDuplicateNode.String(), "Node already exists").
			WithOperation("AddNode").
			WithResource("node").
			WithDetails(n.ID).
			Build()
	}
	m.nodes[n.ID] = n
	m.nodeOrder = append(m.nodeOrder, n.ID)
	return nil
}

// AddLink inserts a link if no link exists for the same unordered pair.
// It returns false without error for a duplicate pair, and an invariant error
// when an endpoint is unknown or the id belongs to another pair.
func (m *Model) AddLink(l Link) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLink(l)
}

func (m *Model) insertLink(l Link) (bool, error) {
	if l.ID == "" || l.SourceID == "" || l.TargetID == "" {
		return false, errors.Validation(errors.CodeMissingID.String(), "Link without id or endpoint").
			WithOperation("AddLink").
			Build()
	}
	if _, ok := m.nodes[l.SourceID]; !ok {
		return false, danglingLink(l, l.SourceID)
	}
	if _, ok := m.nodes[l.TargetID]; !ok {
		return false, danglingLink(l, l.TargetID)
	}
	key := l.Key()
	if _, dup := m.pairs[key]; dup {
		return false, nil
	}
	if _, dup := m.links[l.ID]; dup {
		return false, errors.Invariant(errors.CodeDuplicateLink.String(), "Link id already used by another pair").
			WithOperation("AddLink").
			WithResource("link").
			WithDetails(l.ID).
			Build()
	}
	if l.Type == "" {
		l.Type = DefaultLinkType
	}

	m.links[l.ID] = l
	m.pairs[key] = l.ID
	m.linkOrder = append(m.linkOrder, l.ID)
	m.adjacency[l.SourceID] = append(m.adjacency[l.SourceID], l.ID)
	if !l.SelfLoop() {
		m.adjacency[l.TargetID] = append(m.adjacency[l.TargetID], l.ID)
	}
	return true, nil
}

func danglingLink(l Link, missing string) error {
	return errors.Invariant(errors.CodeDanglingLink.String(), "Link references an unknown node").
		WithOperation("AddLink").
		WithResource("link").
		WithDetails(fmt.Sprintf("link %s references %s", l.ID, missing)).
		Build()
}

// RemoveNode removes the node and every link touching it as one step.
// It returns the removed links and whether the node existed.
func (m *Model) RemoveNode(id string) ([]Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[id]; !ok {
		return nil, false
	}

	var removed []Link
	for _, lid := range append([]string(nil), m.adjacency[id]...) {
		if l, ok := m.deleteLink(lid); ok {
			removed = append(removed, l)
		}
	}

	delete(m.nodes, id)
	delete(m.adjacency, id)
	m.nodeOrder = removeString(m.nodeOrder, id)
	return removed, true
}

// RemoveLink removes a single link by id.
func (m *Model) RemoveLink(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.deleteLink(id)
	return ok
}

func (m *Model) deleteLink(id string) (Link, bool) {
	l, ok := m.links[id]
	if !ok {
		return Link{}, false
	}
	delete(m.links, id)
	delete(m.pairs, l.Key())
	m.linkOrder = removeString(m.linkOrder, id)
	m.adjacency[l.SourceID] = removeString(m.adjacency[l.SourceID], id)
	m.adjacency[l.TargetID] = removeString(m.adjacency[l.TargetID], id)
	return l, true
}

// ResolveLink returns the link with its endpoint nodes. It fails when either
// endpoint is no longer in the model.
func (m *Model) ResolveLink(id string) (ResolvedLink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.links[id]
	if !ok {
		return ResolvedLink{}, false
	}
	src, okS := m.nodes[l.SourceID]
	dst, okT := m.nodes[l.TargetID]
	if !okS || !okT {
		return ResolvedLink{}, false
	}
	return ResolvedLink{Link: l, Source: src, Target: dst}, true
}

// LinksOf returns the links touching id.
func (m *Model) LinksOf(id string) []Link {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Link, 0, len(m.adjacency[id]))
	for _, lid := range m.adjacency[id] {
		out = append(out, m.links[lid])
	}
	return out
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
