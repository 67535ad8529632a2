// Package graphql talks to the GraphMind GraphQL backend.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

const (
	searchNodesQuery = `query SearchNodes($titleQuery: String!) {
  searchNodes(titleQuery: $titleQuery) {
    id
    title
    description
    connections {
      relationship {
        id
        type
        notes
        from { id }
        to { id }
      }
      node { id title description }
    }
  }
}`

	addNodeMutation = `mutation AddNode($title: String!, $description: String!) {
  addNode(input: { title: $title, description: $description }) { id title description }
}`

	linkNodesMutation = `mutation LinkNodes($fromId: ID!, $toId: ID!, $type: RelationshipType!, $notes: String) {
  linkNodes(input: { fromNodeId: $fromId, toNodeId: $toId, type: $type, notes: $notes }) { id type notes }
}`

	deleteNodeMutation = `mutation DeleteNode($id: ID!) { deleteNode(id: $id) }`

	deleteLinkMutation = `mutation DeleteLink($id: ID!) { deleteLink(id: $id) }`
)

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 512

// Client is a ports.GraphStore backed by the GraphQL endpoint.
type Client struct {
	endpoint    string
	titleFilter string
	headers     map[string]string
	http        *http.Client
	logger      *zap.Logger
}

var _ ports.GraphStore = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithHeaders adds headers to every request, typically Authorization.
func WithHeaders(h map[string]string) Option {
	return func(cl *Client) {
		for k, v := range h {
			cl.headers[k] = v
		}
	}
}

// WithTitleFilter restricts FetchGraph to titles containing filter.
func WithTitleFilter(filter string) Option {
	return func(cl *Client) { cl.titleFilter = filter }
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		headers:  make(map[string]string),
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// do posts one operation and decodes data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return errors.Internal(errors.CodeInternal.String(), "Failed to encode request").
			WithOperation(op).
			WithCause(err).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Validation(errors.CodeInvalidConfig.String(), "Invalid GraphQL endpoint").
			WithOperation(op).
			WithDetails(c.endpoint).
			WithCause(err).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.FromStoreError(ctx.Err(), op, "graphql")
		}
		return errors.Connection(errors.CodeConnectionFailed.String(), "GraphQL endpoint unreachable").
			WithOperation(op).
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	defer resp.Body.Close()

	c.logger.Debug("GraphQL request completed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		b := errors.NewError(statusType(resp.StatusCode), errors.CodeRemoteError.String(),
			fmt.Sprintf("GraphQL endpoint returned %d", resp.StatusCode)).
			WithOperation(op).
			WithDetails(strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			b = b.WithRetryable(true)
		}
		return b.Build()
	}

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Validation(errors.CodeMalformedResponse.String(), "Malformed GraphQL response").
			WithOperation(op).
			WithCause(err).
			Build()
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return errors.NewError(errors.ErrorTypeInternal, errors.CodeRemoteError.String(), "GraphQL operation failed").
			WithOperation(op).
			WithDetails(strings.Join(msgs, "; ")).
			Build()
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Validation(errors.CodeMalformedResponse.String(), "Unexpected GraphQL data").
			WithOperation(op).
			WithCause(err).
			Build()
	}
	return nil
}

func statusType(status int) errors.ErrorType {
	switch {
	case status == http.StatusNotFound:
		return errors.ErrorTypeNotFound
	case status == http.StatusTooManyRequests:
		return errors.ErrorTypeRateLimit
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errors.ErrorTypeValidation
	case status >= 500:
		return errors.ErrorTypeUnavailable
	default:
		return errors.ErrorTypeInternal
	}
}

// FetchGraph runs searchNodes with the configured title filter.
func (c *Client) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	var data struct {
		SearchNodes []graph.RawNode `json:"searchNodes"`
	}
	if err := c.do(ctx, "FetchGraph", searchNodesQuery, map[string]any{"titleQuery": c.titleFilter}, &data); err != nil {
		return nil, err
	}
	return data.SearchNodes, nil
}

// CreateNode runs addNode.
func (c *Client) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	var data struct {
		AddNode *graph.Node `json:"addNode"`
	}
	vars := map[string]any{"title": title, "description": description}
	if err := c.do(ctx, "CreateNode", addNodeMutation, vars, &data); err != nil {
		return graph.Node{}, err
	}
	if data.AddNode == nil || data.AddNode.ID == "" {
		return graph.Node{}, errors.Validation(errors.CodeMissingID.String(), "Created node has no id").
			WithOperation("CreateNode").
			Build()
	}
	return *data.AddNode, nil
}

// LinkNodes runs linkNodes.
func (c *Client) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	typ := req.Type
	if typ == "" {
		typ = graph.DefaultLinkType
	}
	var data struct {
		LinkNodes *struct {
			ID    string `json:"id"`
			Type  string `json:"type"`
			Notes string `json:"notes"`
		} `json:"linkNodes"`
	}
	vars := map[string]any{"fromId": req.FromID, "toId": req.ToID, "type": string(typ), "notes": req.Notes}
	if err := c.do(ctx, "LinkNodes", linkNodesMutation, vars, &data); err != nil {
		return ports.LinkRef{}, err
	}
	if data.LinkNodes == nil || data.LinkNodes.ID == "" {
		return ports.LinkRef{}, errors.Validation(errors.CodeMissingID.String(), "Created link has no id").
			WithOperation("LinkNodes").
			Build()
	}
	ref := ports.LinkRef{ID: data.LinkNodes.ID, FromID: req.FromID, ToID: req.ToID, Type: typ, Notes: req.Notes}
	if data.LinkNodes.Type != "" {
		ref.Type = graph.LinkType(data.LinkNodes.Type)
	}
	return ref, nil
}

// DeleteNode runs deleteNode. The backend answers null for unknown ids.
func (c *Client) DeleteNode(ctx context.Context, id string) (string, error) {
	var data struct {
		DeleteNode *string `json:"deleteNode"`
	}
	if err := c.do(ctx, "DeleteNode", deleteNodeMutation, map[string]any{"id": id}, &data); err != nil {
		return "", err
	}
	if data.DeleteNode == nil {
		return "", errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("DeleteNode").
			WithResource("node").
			WithDetails(id).
			Build()
	}
	return *data.DeleteNode, nil
}

// DeleteLink runs deleteLink.
func (c *Client) DeleteLink(ctx context.Context, id string) (string, error) {
	var data struct {
		DeleteLink *string `json:"deleteLink"`
	}
	if err := c.do(ctx, "DeleteLink", deleteLinkMutation, map[string]any{"id": id}, &data); err != nil {
		return "", err
	}
	if data.DeleteLink == nil {
		return "", errors.NotFound(errors.CodeLinkNotFound.String(), "Link does not exist").
			WithOperation("DeleteLink").
			WithResource("link").
			WithDetails(id).
			Build()
	}
	return *data.DeleteLink, nil
}
