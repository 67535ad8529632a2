package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
)

const graphKey = "graph"

// Store serves FetchGraph from the cache and drops the cached copy after
// every successful mutation. Cache failures are logged and fall through to
// the inner store.
type Store struct {
	inner  ports.GraphStore
	cache  Cache
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

var _ ports.GraphStore = (*Store)(nil)

// NewStore wraps inner. Keys are prefixed with keyPrefix.
func NewStore(inner ports.GraphStore, c Cache, keyPrefix string, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{inner: inner, cache: c, key: keyPrefix + graphKey, ttl: ttl, logger: logger}
}

// FetchGraph is read-through.
func (s *Store) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	data, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", s.key), zap.Error(err))
	}
	if ok {
		var raw []graph.RawNode
		if err := json.Unmarshal(data, &raw); err == nil {
			s.logger.Debug("Graph served from cache", zap.String("key", s.key))
			return raw, nil
		}
		s.logger.Warn("Discarding unreadable cache entry", zap.String("key", s.key))
	}

	raw, err := s.inner.FetchGraph(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(raw); err == nil {
		if err := s.cache.Set(ctx, s.key, data, s.ttl); err != nil {
			s.logger.Warn("Cache write failed", zap.String("key", s.key), zap.Error(err))
		}
	}
	return raw, nil
}

func (s *Store) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.String("key", s.key), zap.Error(err))
	}
}

// CreateNode invalidates on success.
func (s *Store) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	n, err := s.inner.CreateNode(ctx, title, description)
	if err == nil {
		s.invalidate(ctx)
	}
	return n, err
}

// LinkNodes invalidates on success.
func (s *Store) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	ref, err := s.inner.LinkNodes(ctx, req)
	if err == nil {
		s.invalidate(ctx)
	}
	return ref, err
}

// DeleteNode invalidates on success.
func (s *Store) DeleteNode(ctx context.Context, id string) (string, error) {
	out, err := s.inner.DeleteNode(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}

// DeleteLink invalidates on success.
func (s *Store) DeleteLink(ctx context.Context, id string) (string, error) {
	out, err := s.inner.DeleteLink(ctx, id)
	if err == nil {
		s.invalidate(ctx)
	}
	return out, err
}
