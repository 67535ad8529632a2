package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "graph.db"), zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTripsGraph(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := openTestStore(t)
	a, err := s.CreateNode(ctx, "Alpha", "first")
	require.NoError(t, err)
	b, err := s.CreateNode(ctx, "Beta", "")
	require.NoError(t, err)
	_, err = s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID, Type: graph.LinkSimilarTo, Notes: "close"})
	require.NoError(t, err)

	// Act
	raw, err := s.FetchGraph(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "Alpha", raw[0].Title)
	assert.Equal(t, "first", raw[0].Description)
	require.Len(t, raw[1].Connections, 1)
	rel := raw[1].Connections[0].Relationship
	assert.Equal(t, a.ID, rel.From.ID)
	assert.Equal(t, b.ID, rel.To.ID)
	assert.Equal(t, "close", rel.Notes)
	assert.Equal(t, "Alpha", raw[1].Connections[0].Node.Title)

	snap, issues, err := graph.Normalize(raw)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, snap.Links, 1)
	assert.Equal(t, graph.LinkSimilarTo, snap.Links[0].Type)
}

func TestStore_DeleteNodeCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, _ := s.CreateNode(ctx, "A", "")
	b, _ := s.CreateNode(ctx, "B", "")
	c, _ := s.CreateNode(ctx, "C", "")
	_, _ = s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID})
	_, _ = s.LinkNodes(ctx, ports.LinkRequest{FromID: b.ID, ToID: c.ID})

	_, err := s.DeleteNode(ctx, b.ID)
	require.NoError(t, err)

	raw, err := s.FetchGraph(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	for _, n := range raw {
		assert.Empty(t, n.Connections)
	}
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, _ := s.CreateNode(ctx, "A", "")

	tests := []struct {
		name  string
		run   func() error
		check func(error) bool
	}{
		{"blank title", func() error { _, err := s.CreateNode(ctx, "  ", ""); return err }, errors.IsValidation},
		{"unknown type", func() error {
			_, err := s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: a.ID, Type: "FOLLOWS"})
			return err
		}, errors.IsValidation},
		{"missing endpoint", func() error {
			_, err := s.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: "ghost"})
			return err
		}, errors.IsNotFound},
		{"delete unknown node", func() error { _, err := s.DeleteNode(ctx, "ghost"); return err }, errors.IsNotFound},
		{"delete unknown link", func() error { _, err := s.DeleteLink(ctx, "ghost"); return err }, errors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, tt.check(err), err.Error())
		})
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, "Kept", "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, zap.NewNop(), WithTitleFilter("kep"))
	require.NoError(t, err)
	defer reopened.Close()

	raw, err := reopened.FetchGraph(ctx)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "Kept", raw[0].Title)
}
