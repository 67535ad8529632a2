package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/infrastructure/store/memory"
	"graphmind/internal/layout"
	"graphmind/internal/render"
)

func newTestServer(t *testing.T) (*Server, *services.GraphViewService) {
	t.Helper()
	ctx := context.Background()
	n := 0
	store := memory.NewStore(memory.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	a, err := store.CreateNode(ctx, "Alpha", "")
	require.NoError(t, err)
	b, err := store.CreateNode(ctx, "Beta", "")
	require.NoError(t, err)
	_, err = store.CreateNode(ctx, "Gamma", "")
	require.NoError(t, err)
	_, err = store.LinkNodes(ctx, ports.LinkRequest{FromID: a.ID, ToID: b.ID})
	require.NoError(t, err)

	cfg := config.Default(config.Development)
	sim := layout.New(cfg.Layout, layout.WithScheduler(layout.NewManualScheduler()), layout.WithLogger(zap.NewNop()))
	svc := services.NewGraphViewService(cfg, store, nil, sim, render.NewReconciler(cfg.Render), zap.NewNop())
	t.Cleanup(svc.Stop)
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)

	return NewServer(svc, "test", zap.NewNop()), svc
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestServer_ReadGraph(t *testing.T) {
	s, _ := newTestServer(t)

	contents, err := s.handleReadGraph(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: graphURI},
	})

	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	var snap graph.Snapshot
	require.NoError(t, json.Unmarshal([]byte(text.Text), &snap))
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Links, 1)
}

func TestServer_ListNodes(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleListNodes(context.Background(), callTool("list_nodes", map[string]any{"query": "ALP"}))

	require.NoError(t, err)
	var nodes []graph.Node
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, "Alpha", nodes[0].Title)
}

func TestServer_NeighborsOf(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handleNeighborsOf(context.Background(), callTool("neighbors_of", map[string]any{"node_id": "id-1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Beta")

	result, err = s.handleNeighborsOf(context.Background(), callTool("neighbors_of", map[string]any{"node_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "NODE_NOT_FOUND")
}

func TestServer_AddNodeReportsFailures(t *testing.T) {
	// Arrange
	s, svc := newTestServer(t)

	// Act
	result, err := s.handleAddNode(context.Background(), callTool("add_node", map[string]any{
		"title":   "Delta",
		"link_to": "id-1, ghost",
		"type":    "similar_to",
	}))

	// Assert
	require.NoError(t, err)
	assert.False(t, result.IsError)
	var out services.AddNodeResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "Delta", out.Node.Title)
	require.Len(t, out.Links, 1)
	assert.Equal(t, graph.LinkSimilarTo, out.Links[0].Type)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "ghost", out.Failures[0].ToID)
	assert.True(t, svc.Model().HasNode(out.Node.ID))
}

func TestServer_AddNodeRejectsBadInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"blank title", map[string]any{"title": "  "}},
		{"unknown type", map[string]any{"title": "X", "type": "FOLLOWS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleAddNode(context.Background(), callTool("add_node", tt.args))

			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestServer_DeleteNodeRequiresConfirm(t *testing.T) {
	s, svc := newTestServer(t)

	result, err := s.handleDeleteNode(context.Background(), callTool("delete_node", map[string]any{"node_id": "id-2"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.True(t, svc.Model().HasNode("id-2"))

	result, err = s.handleDeleteNode(context.Background(), callTool("delete_node", map[string]any{"node_id": "id-2", "confirm": true}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.False(t, svc.Model().HasNode("id-2"))
	_, links := svc.Model().Len()
	assert.Zero(t, links)
}

func TestServer_SelectAndDeleteLink(t *testing.T) {
	s, svc := newTestServer(t)

	result, err := s.handleSelectNode(context.Background(), callTool("select_node", map[string]any{"node_id": "id-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), `"state": "selected"`)

	linkID := svc.Model().Snapshot().Links[0].ID
	result, err = s.handleDeleteLink(context.Background(), callTool("delete_link", map[string]any{"link_id": linkID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	selection, err := s.handleReadSelection(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: selectionURI},
	})
	require.NoError(t, err)
	assert.Contains(t, selection[0].(mcp.TextResourceContents).Text, `"neighbors": []`)
}
