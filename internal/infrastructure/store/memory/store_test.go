package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func TestStore_ReportsRelationshipsFromBothEndpoints(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStore(sequentialIDs())
	a, _ := s.CreateNode(ctx, "Alpha", "")
	b, _ := s.CreateNode(ctx, "Beta", "")
	_, err := s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID, Notes: "n"})
	require.NoError(t, err)

	// Act
	raw, err := s.FetchGraph(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, raw, 2)
	require.Len(t, raw[0].Connections, 1)
	require.Len(t, raw[1].Connections, 1)
	assert.Equal(t, raw[0].Connections[0].Relationship, raw[1].Connections[0].Relationship)
	assert.Equal(t, "Beta", raw[0].Connections[0].Node.Title)
	assert.Equal(t, "Alpha", raw[1].Connections[0].Node.Title)
	assert.Equal(t, string(graph.LinkRelatedTo), raw[0].Connections[0].Relationship.Type)

	snap, issues, err := graph.Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, snap.Links, 1)
}

func TestStore_DeleteNodeCascades(t *testing.T) {
	ctx := context.Background()
	s := NewStore(sequentialIDs())
	a, _ := s.CreateNode(ctx, "A", "")
	b, _ := s.CreateNode(ctx, "B", "")
	c, _ := s.CreateNode(ctx, "C", "")
	_, _ = s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID})
	_, _ = s.LinkNodes(ctx, ports.LinkRequest{FromID: c.ID, ToID: b.ID})

	id, err := s.DeleteNode(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)

	raw, _ := s.FetchGraph(ctx)
	require.Len(t, raw, 2)
	for _, n := range raw {
		assert.Empty(t, n.Connections)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore(sequentialIDs())
	a, _ := s.CreateNode(ctx, "A", "")

	_, err := s.CreateNode(ctx, " ", "")
	assert.True(t, errors.IsValidation(err))

	_, err = s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: "ghost"})
	assert.True(t, errors.IsNotFound(err))

	_, err = s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: a.ID, Type: "FOLLOWS"})
	assert.True(t, errors.IsValidation(err))

	_, err = s.DeleteNode(ctx, "ghost")
	assert.True(t, errors.IsNotFound(err))

	_, err = s.DeleteLink(ctx, "ghost")
	assert.True(t, errors.IsNotFound(err))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.FetchGraph(canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_DeleteLink(t *testing.T) {
	ctx := context.Background()
	s := NewStore(sequentialIDs())
	a, _ := s.CreateNode(ctx, "A", "")
	b, _ := s.CreateNode(ctx, "B", "")
	ref, _ := s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID})

	_, err := s.DeleteLink(ctx, ref.ID)

	require.NoError(t, err)
	raw, _ := s.FetchGraph(ctx)
	assert.Empty(t, raw[0].Connections)
}

func TestStore_TitleFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithTitleFilter("SPRING"))
	require.NoError(t, SeedDemo(ctx, s))

	raw, err := s.FetchGraph(ctx)

	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "Spring Force", raw[0].Title)
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, SeedDemo(ctx, s))

	raw, err := s.FetchGraph(ctx)
	require.NoError(t, err)
	snap, issues, err := graph.Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Len(t, snap.Nodes, len(demoNodes))
	assert.Len(t, snap.Links, len(demoLinks))
}
