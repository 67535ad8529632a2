// Package mcp exposes a graph view to Model Context Protocol clients.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"graphmind/internal/application/services"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
	"graphmind/internal/interaction"
)

const (
	graphURI     = "graphmind://graph"
	selectionURI = "graphmind://selection"
	frameURI     = "graphmind://frame"
)

// Server adapts a GraphViewService to MCP.
type Server struct {
	mcpServer *server.MCPServer
	service   *services.GraphViewService
	logger    *zap.Logger
}

// NewServer creates the server and registers its resources and tools.
func NewServer(service *services.GraphViewService, version string, logger *zap.Logger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("graphmind", version),
		service:   service,
		logger:    logger,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve serves MCP on stdio until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		graphURI,
		"Knowledge graph",
		mcp.WithResourceDescription("Every node and link of the loaded graph"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadGraph)

	s.mcpServer.AddResource(mcp.NewResource(
		selectionURI,
		"Current selection",
		mcp.WithResourceDescription("The selected node and its neighbors"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadSelection)

	s.mcpServer.AddResource(mcp.NewResource(
		frameURI,
		"Layout frame",
		mcp.WithResourceDescription("Node positions from the latest layout tick"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadFrame)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"list_nodes",
		mcp.WithDescription("List the nodes of the graph, optionally filtered by title"),
		mcp.WithString("query", mcp.Description("Case-insensitive title substring")),
	), s.handleListNodes)

	s.mcpServer.AddTool(mcp.NewTool(
		"neighbors_of",
		mcp.WithDescription("List the nodes directly linked to a node"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node to inspect")),
	), s.handleNeighborsOf)

	s.mcpServer.AddTool(mcp.NewTool(
		"select_node",
		mcp.WithDescription("Select a node in the diagram"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node to select")),
	), s.handleSelectNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"add_node",
		mcp.WithDescription("Create a node and link it to existing nodes"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the new node")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("link_to", mcp.Description("Comma-separated ids of nodes to link to")),
		mcp.WithString("type", mcp.Description("Link type: RELATED_TO, SIMILAR_TO or REFERENCES")),
	), s.handleAddNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_node",
		mcp.WithDescription("Delete a node and every link touching it"),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node to delete")),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true to delete")),
	), s.handleDeleteNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_link",
		mcp.WithDescription("Delete one link"),
		mcp.WithString("link_id", mcp.Required(), mcp.Description("The link to delete")),
	), s.handleDeleteLink)

	s.mcpServer.AddTool(mcp.NewTool(
		"refresh",
		mcp.WithDescription("Reload the graph from the store, keeping the current layout"),
	), s.handleRefresh)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"graphmind-aware",
		mcp.WithPromptDescription("Explains how nodes, links and selection work in GraphMind"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug("MCP tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) handleReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.service.Model().Snapshot())
}

func (s *Server) handleReadSelection(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.service.Controller().Selection())
}

func (s *Server) handleReadFrame(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(request.Params.URI, s.service.Frame())
}

func (s *Server) handleListNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(strings.TrimSpace(mcp.ParseString(request, "query", "")))
	nodes := []graph.Node{}
	for _, n := range s.service.Model().Snapshot().Nodes {
		if query == "" || strings.Contains(strings.ToLower(n.Title), query) {
			nodes = append(nodes, n)
		}
	}
	return jsonResult(nodes)
}

func (s *Server) handleNeighborsOf(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := s.service.NeighborsOf(mcp.ParseString(request, "node_id", ""))
	if err != nil {
		return s.toolError("neighbors_of", err), nil
	}
	return jsonResult(nodes)
}

func (s *Server) handleSelectNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c := s.service.Controller()
	id := mcp.ParseString(request, "node_id", "")
	if sel := c.Selection(); sel.State == interaction.NodeSelected && sel.NodeID == id {
		return jsonResult(sel)
	}
	if err := c.Click(id); err != nil {
		return s.toolError("select_node", err), nil
	}
	return jsonResult(c.Selection())
}

func (s *Server) handleAddNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var linkTo []string
	for _, id := range strings.Split(mcp.ParseString(request, "link_to", ""), ",") {
		if id = strings.TrimSpace(id); id != "" {
			linkTo = append(linkTo, id)
		}
	}

	typ, _ := graph.ParseLinkType(mcp.ParseString(request, "type", ""))
	result, err := s.service.AddNode(ctx, services.AddNodeRequest{
		Title:       mcp.ParseString(request, "title", ""),
		Description: mcp.ParseString(request, "description", ""),
		LinkTo:      linkTo,
		Type:        typ,
	})
	if err != nil && !errors.IsPartialLink(err) {
		return s.toolError("add_node", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleDeleteNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !mcp.ParseBoolean(request, "confirm", false) {
		return s.toolError("delete_node",
			errors.Validation(errors.CodeDeleteNotConfirm.String(), "Deletion must be confirmed").
				WithOperation("DeleteNode").
				Build()), nil
	}
	id := mcp.ParseString(request, "node_id", "")
	if err := s.service.DeleteNode(ctx, id); err != nil {
		return s.toolError("delete_node", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted node %s", id)), nil
}

func (s *Server) handleDeleteLink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "link_id", "")
	if err := s.service.DeleteLink(ctx, id); err != nil {
		return s.toolError("delete_link", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted link %s", id)), nil
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.service.Refresh(ctx)
	if err != nil {
		return s.toolError("refresh", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Loaded %d nodes and %d links", result.Nodes, result.Links)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	if request.Params.Name != "graphmind-aware" {
		return nil, fmt.Errorf("prompt not found: %s", request.Params.Name)
	}

	promptText := `You are working with GraphMind, a knowledge graph of ideas.

Concepts:
- Node: an idea with a title and an optional description.
- Link: an undirected connection between two nodes, typed RELATED_TO, SIMILAR_TO or REFERENCES.
- Selection: at most one node is selected; its neighbors are the nodes linked to it.

Use list_nodes and neighbors_of to explore before changing anything.
add_node may create some links and reject others; read the failures in its result.
delete_node removes every link of the node and requires confirm=true.
`

	return mcp.NewGetPromptResult(
		"graphmind-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
