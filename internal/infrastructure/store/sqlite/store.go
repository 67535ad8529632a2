// Package sqlite keeps a graph in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS relationships (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL UNIQUE,
	type    TEXT NOT NULL,
	notes   TEXT NOT NULL DEFAULT '',
	from_id TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	to_id   TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
`

// Store implements ports.GraphStore on SQLite.
type Store struct {
	conn        *sql.DB
	path        string
	titleFilter string
	logger      *zap.Logger
	newID       func() string
}

var _ ports.GraphStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithTitleFilter limits FetchGraph to titles containing filter.
func WithTitleFilter(filter string) Option {
	return func(s *Store) { s.titleFilter = strings.ToLower(filter) }
}

// Open opens or creates the database at path with WAL mode and foreign
// keys enabled, and applies the schema.
func Open(path string, logger *zap.Logger, opts ...Option) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// PRAGMAs are per connection.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	logger.Info("SQLite store opened", zap.String("path", path))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// FetchGraph returns every node with its outgoing then incoming
// relationships, in creation order.
func (s *Store) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	nodes, err := s.loadNodes(ctx)
	if err != nil {
		return nil, errors.FromStoreError(err, "FetchGraph", "node")
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, type, notes, from_id, to_id FROM relationships ORDER BY seq`)
	if err != nil {
		return nil, errors.FromStoreError(err, "FetchGraph", "link")
	}
	defer rows.Close()

	var rels []graph.RawRelationship
	for rows.Next() {
		var r graph.RawRelationship
		if err := rows.Scan(&r.ID, &r.Type, &r.Notes, &r.From.ID, &r.To.ID); err != nil {
			return nil, errors.FromStoreError(err, "FetchGraph", "link")
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.FromStoreError(err, "FetchGraph", "link")
	}

	byID := make(map[string]graph.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	summary := func(id string) graph.RawNodeSummary {
		n := byID[id]
		return graph.RawNodeSummary{ID: n.ID, Title: n.Title, Description: n.Description}
	}

	out := make([]graph.RawNode, 0, len(nodes))
	for _, n := range nodes {
		if s.titleFilter != "" && !strings.Contains(strings.ToLower(n.Title), s.titleFilter) {
			continue
		}
		raw := graph.RawNode{ID: n.ID, Title: n.Title, Description: n.Description, Connections: []graph.RawConnection{}}
		for _, r := range rels {
			if r.From.ID == n.ID {
				raw.Connections = append(raw.Connections, graph.RawConnection{Relationship: r, Node: summary(r.To.ID)})
			}
		}
		for _, r := range rels {
			if r.To.ID == n.ID {
				raw.Connections = append(raw.Connections, graph.RawConnection{Relationship: r, Node: summary(r.From.ID)})
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

func (s *Store) loadNodes(ctx context.Context) ([]graph.Node, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, title, description FROM nodes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		var n graph.Node
		if err := rows.Scan(&n.ID, &n.Title, &n.Description); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CreateNode inserts a node under a fresh id.
func (s *Store) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	if strings.TrimSpace(title) == "" {
		return graph.Node{}, errors.Validation(errors.CodeInvalidInput.String(), "Title is required").
			WithOperation("CreateNode").
			Build()
	}
	n := graph.Node{ID: s.newID(), Title: title, Description: description}
	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO nodes (id, title, description) VALUES (?, ?, ?)`,
		n.ID, n.Title, n.Description); err != nil {
		return graph.Node{}, errors.FromStoreError(err, "CreateNode", "node")
	}
	return n, nil
}

// LinkNodes inserts a relationship between two existing nodes.
func (s *Store) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
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

	for _, id := range []string{req.FromID, req.ToID} {
		var exists int
		err := s.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM nodes WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return ports.LinkRef{}, errors.FromStoreError(err, "LinkNodes", "node")
		}
		if exists == 0 {
			return ports.LinkRef{}, errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
				WithOperation("LinkNodes").
				WithResource("node").
				WithDetails(id).
				Build()
		}
	}

	ref := ports.LinkRef{ID: s.newID(), FromID: req.FromID, ToID: req.ToID, Type: typ, Notes: req.Notes}
	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO relationships (id, type, notes, from_id, to_id) VALUES (?, ?, ?, ?, ?)`,
		ref.ID, string(ref.Type), ref.Notes, ref.FromID, ref.ToID); err != nil {
		return ports.LinkRef{}, errors.FromStoreError(err, "LinkNodes", "link")
	}
	return ref, nil
}

// DeleteNode removes the node. Foreign keys cascade to its relationships.
func (s *Store) DeleteNode(ctx context.Context, id string) (string, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return "", errors.FromStoreError(err, "DeleteNode", "node")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", errors.NotFound(errors.CodeNodeNotFound.String(), "Node does not exist").
			WithOperation("DeleteNode").
			WithResource("node").
			WithDetails(id).
			Build()
	}
	return id, nil
}

// DeleteLink removes one relationship.
func (s *Store) DeleteLink(ctx context.Context, id string) (string, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return "", errors.FromStoreError(err, "DeleteLink", "link")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", errors.NotFound(errors.CodeLinkNotFound.String(), "Link does not exist").
			WithOperation("DeleteLink").
			WithResource("link").
			WithDetails(id).
			Build()
	}
	return id, nil
}
