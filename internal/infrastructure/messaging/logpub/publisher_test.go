package logpub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"graphmind/internal/domain/events"
)

func TestPublisher_LogsEachEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPublisher(zap.New(core))
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewNodeCreated("n1", "A", ts),
		events.NewLinkDeleted("r1", ts),
	})

	require.NoError(t, err)
	entries := logs.FilterMessage("Graph event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, events.TypeNodeCreated, entries[0].ContextMap()["eventType"])
	assert.Equal(t, "r1", entries[1].ContextMap()["aggregateID"])
}
