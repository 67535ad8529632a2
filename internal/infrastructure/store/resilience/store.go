// Package resilience decorates a graph store with retries and a circuit
// breaker.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"graphmind/internal/application/ports"
	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
	"graphmind/internal/errors"
)

// ============================================================================
// RETRY + CIRCUIT BREAKER DECORATOR
// ============================================================================

// Store wraps a ports.GraphStore. Reads are retried on any retryable
// error. Mutations are retried only when the request never reached the
// backend, since a repeated create would duplicate it.
type Store struct {
	inner  ports.GraphStore
	retry  config.RetryConfig
	logger *zap.Logger

	breaker *gobreaker.CircuitBreaker
	// openTimeout is how long an open breaker rejects calls.
	openTimeout time.Duration

	mu   sync.Mutex
	rand *rand.Rand
}

var _ ports.GraphStore = (*Store)(nil)

// NewStore wraps inner. The breaker is skipped when cfg.CircuitBreaker is
// disabled.
func NewStore(inner ports.GraphStore, cfg config.Infrastructure, logger *zap.Logger) *Store {
	s := &Store{
		inner:  inner,
		retry:  cfg.Retry,
		logger: logger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.CircuitBreaker.Enabled {
		s.breaker = newBreaker(cfg.CircuitBreaker, logger)
		s.openTimeout = cfg.CircuitBreaker.OpenTimeout
	}
	return s
}

func newBreaker(cfg config.CircuitBreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-store",
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Client errors say nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.IsValidation(err) ||
				errors.IsNotFound(err) ||
				errors.IsConflict(err)
		},
	})
}

// BreakerState reports the breaker state, "disabled" without one.
func (s *Store) BreakerState() string {
	if s.breaker == nil {
		return "disabled"
	}
	return s.breaker.State().String()
}

// FetchGraph retries transient failures.
func (s *Store) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	var out []graph.RawNode
	err := s.execute(ctx, "FetchGraph", true, func() error {
		var err error
		out, err = s.inner.FetchGraph(ctx)
		return err
	})
	return out, err
}

// CreateNode is not idempotent.
func (s *Store) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	var out graph.Node
	err := s.execute(ctx, "CreateNode", false, func() error {
		var err error
		out, err = s.inner.CreateNode(ctx, title, description)
		return err
	})
	return out, err
}

// LinkNodes is not idempotent.
func (s *Store) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	var out ports.LinkRef
	err := s.execute(ctx, "LinkNodes", false, func() error {
		var err error
		out, err = s.inner.LinkNodes(ctx, req)
		return err
	})
	return out, err
}

// DeleteNode is retried like a create: a second attempt after a lost
// response would report the node as missing.
func (s *Store) DeleteNode(ctx context.Context, id string) (string, error) {
	var out string
	err := s.execute(ctx, "DeleteNode", false, func() error {
		var err error
		out, err = s.inner.DeleteNode(ctx, id)
		return err
	})
	return out, err
}

// DeleteLink follows DeleteNode.
func (s *Store) DeleteLink(ctx context.Context, id string) (string, error) {
	var out string
	err := s.execute(ctx, "DeleteLink", false, func() error {
		var err error
		out, err = s.inner.DeleteLink(ctx, id)
		return err
	})
	return out, err
}

// execute runs fn through the breaker with exponential backoff.
func (s *Store) execute(ctx context.Context, operation string, idempotent bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return errors.FromStoreError(err, operation, "graph")
		}

		err := s.call(operation, fn)
		if err == nil {
			if attempt > 0 {
				s.logger.Info("Operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if attempt >= s.retry.MaxRetries || !shouldRetry(err, idempotent) {
			break
		}

		delay := s.delay(attempt)
		s.logger.Warn("Retrying store operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

func (s *Store) call(operation string, fn func() error) error {
	if s.breaker == nil {
		return fn()
	}
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return errors.Unavailable(errors.CodeCircuitOpen.String(), "Graph store circuit is open").
			WithOperation(operation).
			WithRetryAfter(s.openTimeout).
			WithCause(err).
			Build()
	}
	return err
}

func shouldRetry(err error, idempotent bool) bool {
	if errors.IsType(err, errors.ErrorTypeConnection) {
		return true
	}
	if !idempotent {
		return false
	}
	return errors.IsRetryable(err)
}

// delay applies exponential backoff capped at MaxDelay with +/- jitter.
func (s *Store) delay(attempt int) time.Duration {
	base := float64(s.retry.InitialDelay) * math.Pow(s.retry.BackoffFactor, float64(attempt))
	if s.retry.MaxDelay > 0 && base > float64(s.retry.MaxDelay) {
		base = float64(s.retry.MaxDelay)
	}
	s.mu.Lock()
	jitter := s.retry.JitterFactor * base * (s.rand.Float64()*2 - 1)
	s.mu.Unlock()
	if d := base + jitter; d > 0 {
		return time.Duration(d)
	}
	return 0
}
