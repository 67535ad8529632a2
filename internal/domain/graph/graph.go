// Package graph implements the GraphMind knowledge graph model.
//
// The model holds nodes and the undirected relationships between them. Links
// keep the direction the store reported (from → to) but the model treats the
// pair as unordered: for any two nodes at most one link exists. Links only
// reference node ids; resolved endpoint views are computed on demand so a
// removed node can never be reached through a stale link.
//
// Positions are deliberately absent from this package. The layout simulation
// owns all coordinates and velocities.
package graph

import (
	"strings"
)

// LinkType is the kind of relationship between two nodes.
type LinkType string

const (
	LinkRelatedTo  LinkType = "RELATED_TO"
	LinkSimilarTo  LinkType = "SIMILAR_TO"
	LinkReferences LinkType = "REFERENCES"
)

// DefaultLinkType is used for links created from the UI.
const DefaultLinkType = LinkRelatedTo

// KnownLinkTypes lists the types this system sends to a store.
var KnownLinkTypes = []LinkType{LinkRelatedTo, LinkSimilarTo, LinkReferences}

// Known reports whether t is one of the link types this system creates.
// Stores may report other values; those are kept verbatim.
func (t LinkType) Known() bool {
	for _, k := range KnownLinkTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParseLinkType normalizes user input to a LinkType. An empty string yields
// DefaultLinkType.
func ParseLinkType(s string) (LinkType, bool) {
	if s == "" {
		return DefaultLinkType, true
	}
	t := LinkType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Known()
}

// Node is a knowledge node.
type Node struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Label is the text shown for the node: its title, or its id when untitled.
func (n Node) Label() string {
	if n.Title != "" {
		return n.Title
	}
	return n.ID
}

// Link is a relationship between two nodes, stored by id.
type Link struct {
	ID       string   `json:"id"`
	SourceID string   `json:"source"`
	TargetID string   `json:"target"`
	Type     LinkType `json:"type"`
	Notes    string   `json:"notes,omitempty"`
}

// Key returns the unordered pair key of the link.
func (l Link) Key() PairKey {
	return NewPairKey(l.SourceID, l.TargetID)
}

// Touches reports whether id is either endpoint.
func (l Link) Touches(id string) bool {
	return l.SourceID == id || l.TargetID == id
}

// Other returns the endpoint opposite id.
func (l Link) Other(id string) string {
	if l.SourceID == id {
		return l.TargetID
	}
	return l.SourceID
}

// SelfLoop reports whether both endpoints are the same node.
func (l Link) SelfLoop() bool {
	return l.SourceID == l.TargetID
}

// PairKey identifies an unordered node pair. Both orders of the same two ids
// produce the same key.
type PairKey struct {
	A string
	B string
}

// NewPairKey builds the canonical key for the pair, ordering ids lexicographically.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// String renders the key as "a|b".
func (k PairKey) String() string {
	return k.A + "|" + k.B
}

// Snapshot is a consistent copy of the graph handed to the layout.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// NodeIDs returns the node ids in snapshot order.
func (s Snapshot) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// ResolvedLink is a link with its endpoint nodes looked up.
type ResolvedLink struct {
	Link
	Source Node `json:"sourceNode"`
	Target Node `json:"targetNode"`
}
