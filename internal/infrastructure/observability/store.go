package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graphmind/internal/application/ports"
	"graphmind/internal/domain/graph"
)

// InstrumentedStore records a span and metrics for every store call.
type InstrumentedStore struct {
	inner     ports.GraphStore
	tracer    trace.Tracer
	collector *Collector
}

var _ ports.GraphStore = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps inner. A nil collector skips metrics.
func NewInstrumentedStore(inner ports.GraphStore, tracer trace.Tracer, collector *Collector) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, tracer: tracer, collector: collector}
}

func (s *InstrumentedStore) observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "GraphStore."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.collector != nil {
			s.collector.ObserveStore(operation, err, time.Since(start))
		}
	}
}

func (s *InstrumentedStore) FetchGraph(ctx context.Context) ([]graph.RawNode, error) {
	ctx, done := s.observe(ctx, "FetchGraph")
	raw, err := s.inner.FetchGraph(ctx)
	done(err)
	return raw, err
}

func (s *InstrumentedStore) CreateNode(ctx context.Context, title, description string) (graph.Node, error) {
	ctx, done := s.observe(ctx, "CreateNode")
	n, err := s.inner.CreateNode(ctx, title, description)
	done(err)
	return n, err
}

func (s *InstrumentedStore) LinkNodes(ctx context.Context, req ports.LinkRequest) (ports.LinkRef, error) {
	ctx, done := s.observe(ctx, "LinkNodes",
		attribute.String("graph.link.from", req.FromID),
		attribute.String("graph.link.to", req.ToID),
	)
	ref, err := s.inner.LinkNodes(ctx, req)
	done(err)
	return ref, err
}

func (s *InstrumentedStore) DeleteNode(ctx context.Context, id string) (string, error) {
	ctx, done := s.observe(ctx, "DeleteNode", attribute.String("graph.node.id", id))
	out, err := s.inner.DeleteNode(ctx, id)
	done(err)
	return out, err
}

func (s *InstrumentedStore) DeleteLink(ctx context.Context, id string) (string, error) {
	ctx, done := s.observe(ctx, "DeleteLink", attribute.String("graph.link.id", id))
	out, err := s.inner.DeleteLink(ctx, id)
	done(err)
	return out, err
}
