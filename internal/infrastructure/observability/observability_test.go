package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"graphmind/internal/application/ports/mocks"
	"graphmind/internal/config"
	"graphmind/internal/domain/graph"
)

func TestCollector_ObservesLayoutAndRender(t *testing.T) {
	// Arrange
	c := NewCollector("graphmind")

	// Act
	c.ObserveTick(0.5, 7, 2*time.Millisecond)
	c.ObserveTick(0.4, 7, time.Millisecond)
	c.ObserveDiff(3, 1, 0, 2)
	c.ObserveSettled()

	// Assert
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Ticks))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.Nodes))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Alpha))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Settled))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.RenderChanges.WithLabelValues("enter")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RenderChanges.WithLabelValues("skip")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("graphmind")
	c.ObserveHTTP("GET", "/api/v1/frame", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(),
		`graphmind_http_requests_total{method="GET",route="/api/v1/frame",status="200"} 1`))
}

func TestInstrumentedStore_RecordsSpansAndMetrics(t *testing.T) {
	// Arrange
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c := NewCollector("graphmind")
	inner := new(mocks.GraphStore)
	inner.On("FetchGraph", mock.Anything).Return([]graph.RawNode{{ID: "1"}}, nil)
	inner.On("DeleteNode", mock.Anything, "x").Return("", assert.AnError)
	s := NewInstrumentedStore(inner, tp.Tracer("test"), c)

	// Act
	_, err := s.FetchGraph(context.Background())
	require.NoError(t, err)
	_, err = s.DeleteNode(context.Background(), "x")
	require.Error(t, err)

	// Assert
	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "GraphStore.FetchGraph", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "GraphStore.DeleteNode", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("FetchGraph", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("DeleteNode", "error")))
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), config.Development, config.Tracing{Enabled: false, ServiceName: "graphmind"})

	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		debug bool
	}{
		{"debug", true},
		{"info", false},
		{"error", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.Development, config.Logging{Level: tt.level, Format: "console"})

			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(-1))
		})
	}
}
