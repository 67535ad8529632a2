package graph

import (
	"fmt"

	"graphmind/internal/errors"
)

// RawNode is a node record as returned by a graph store: the node with every
// relationship it participates in. A relationship between A and B usually
// appears in both A's and B's record.
type RawNode struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Connections []RawConnection `json:"connections"`
}

// RawConnection pairs a relationship with the node on its other side.
type RawConnection struct {
	Relationship RawRelationship `json:"relationship"`
	Node         RawNodeSummary  `json:"node"`
}

// RawNodeSummary is the abbreviated node embedded in a connection.
type RawNodeSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RawRelationship is a relationship as reported by a store.
type RawRelationship struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"`
	Notes string     `json:"notes"`
	From  RawNodeRef `json:"from"`
	To    RawNodeRef `json:"to"`
}

// RawNodeRef references a node by id.
type RawNodeRef struct {
	ID string `json:"id"`
}

// Issue records a tolerated problem found while normalizing, such as a link
// to a node missing from the payload.
type Issue struct {
	LinkID string
	Err    *errors.UnifiedError
}

// Normalize converts store records into a deduplicated snapshot.
//
// Nodes are deduplicated by id, keeping the first record. Relationships are
// deduplicated by unordered pair, keeping the first direction seen. Links that
// reference unknown nodes, or reuse the id of a kept link for another pair,
// are dropped and returned as issues. A record or
// relationship endpoint without an id makes the payload malformed and the
// whole payload is rejected.
func Normalize(raw []RawNode) (Snapshot, []Issue, error) {
	if err := checkIDs(raw); err != nil {
		return Snapshot{}, nil, err
	}

	snap := Snapshot{
		Nodes: make([]Node, 0, len(raw)),
		Links: make([]Link, 0),
	}
	nodes := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if _, seen := nodes[r.ID]; seen {
			continue
		}
		nodes[r.ID] = struct{}{}
		snap.Nodes = append(snap.Nodes, Node{ID: r.ID, Title: r.Title, Description: r.Description})
	}

	var issues []Issue
	pairs := make(map[PairKey]struct{})
	linkIDs := make(map[string]PairKey)
	for _, r := range raw {
		for _, c := range r.Connections {
			rel := c.Relationship
			link := Link{
				ID:       rel.ID,
				SourceID: rel.From.ID,
				TargetID: rel.To.ID,
				Type:     LinkType(rel.Type),
				Notes:    rel.Notes,
			}
			if link.Type == "" {
				link.Type = DefaultLinkType
			}

			key := link.Key()
			if _, dup := pairs[key]; dup {
				continue
			}

			_, okFrom := nodes[link.SourceID]
			_, okTo := nodes[link.TargetID]
			if !okFrom || !okTo {
				issues = append(issues, Issue{
					LinkID: link.ID,
					Err: errors.Invariant(errors.CodeDanglingLink.String(), "Link references a node missing from the graph").
						WithResource("link").
						WithDetails(fmt.Sprintf("link %s: %s -> %s", link.ID, link.SourceID, link.TargetID)).
						Build(),
				})
				continue
			}
			if kept, reused := linkIDs[link.ID]; reused {
				issues = append(issues, Issue{
					LinkID: link.ID,
					Err: errors.Invariant(errors.CodeDuplicateLink.String(), "Link id already used by another pair").
						WithResource("link").
						WithDetails(fmt.Sprintf("link %s: %s kept, %s dropped", link.ID, kept, key)).
						Build(),
				})
				continue
			}

			pairs[key] = struct{}{}
			linkIDs[link.ID] = key
			snap.Links = append(snap.Links, link)
		}
	}
	return snap, issues, nil
}

func checkIDs(raw []RawNode) error {
	for i, r := range raw {
		if r.ID == "" {
			return errors.Validation(errors.CodeMissingID.String(), "Node record without id").
				WithOperation("Normalize").
				WithDetails(fmt.Sprintf("record at index %d", i)).
				Build()
		}
		for j, c := range r.Connections {
			rel := c.Relationship
			if rel.ID == "" || rel.From.ID == "" || rel.To.ID == "" {
				return errors.Validation(errors.CodeMissingID.String(), "Relationship without id or endpoint").
					WithOperation("Normalize").
					WithDetails(fmt.Sprintf("node %s connection %d", r.ID, j)).
					Build()
			}
		}
	}
	return nil
}
