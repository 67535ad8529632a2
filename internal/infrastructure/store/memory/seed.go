package memory

import (
	"context"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
)

var demoNodes = []struct{ title, description string }{
	{"Knowledge Graph", "Nodes connected by typed relationships"},
	{"Force Layout", "Positions from springs, repulsion and centering"},
	{"Spring Force", "Pulls linked nodes toward a rest distance"},
	{"Charge Force", "Pushes every pair of nodes apart"},
	{"Alpha", "Energy that scales forces and decays each tick"},
	{"Dragging", "Pins a node under the pointer"},
	{"Neighbors", "Nodes one link away"},
}

var demoLinks = []struct {
	from, to int
	typ      graph.LinkType
}{
	{0, 1, graph.LinkRelatedTo},
	{1, 2, graph.LinkReferences},
	{1, 3, graph.LinkReferences},
	{1, 4, graph.LinkRelatedTo},
	{2, 3, graph.LinkSimilarTo},
	{5, 4, graph.LinkRelatedTo},
	{0, 6, graph.LinkRelatedTo},
}

// SeedDemo fills the store with a small sample graph.
func SeedDemo(ctx context.Context, s *Store) error {
	ids := make([]string, len(demoNodes))
	for i, n := range demoNodes {
		node, err := s.CreateNode(ctx, n.title, n.description)
		if err != nil {
			return err
		}
		ids[i] = node.ID
	}
	for _, l := range demoLinks {
		if _, err := s.LinkNodes(ctx, ports.LinkRequest{FromID: ids[l.from], ToID: ids[l.to], Type: l.typ}); err != nil {
			return err
		}
	}
	return nil
}
