package concurrency

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanOut_CollectsEachFailureIndependently(t *testing.T) {
	// Arrange
	var ran int32
	boom := errors.New("boom")
	tasks := []Task{
		{ID: "a", Run: func(context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
		{ID: "b", Run: func(context.Context) error { atomic.AddInt32(&ran, 1); return boom }},
		{ID: "c", Run: func(context.Context) error { atomic.AddInt32(&ran, 1); return nil }},
	}

	// Act
	collector := FanOut(context.Background(), 2, tasks)

	// Assert
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
	require.Equal(t, 1, collector.Count())
	err, ok := collector.Get("b")
	require.True(t, ok)
	assert.Equal(t, boom, err)
	_, ok = collector.Get("a")
	assert.False(t, ok)
}

func TestFanOut_CanceledContextSkipsPendingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task{
		{ID: "a", Run: func(context.Context) error { return nil }},
	}

	collector := FanOut(ctx, 0, tasks)

	// With a canceled context either the task ran or was recorded as canceled.
	if collector.HasErrors() {
		err, _ := collector.Get("a")
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestFanOut_Empty(t *testing.T) {
	collector := FanOut(context.Background(), 4, nil)
	assert.False(t, collector.HasErrors())
	assert.NoError(t, collector.ToError())
}

func TestErrorCollector_ToError(t *testing.T) {
	ec := NewErrorCollector(10)
	ec.Add("x", errors.New("first"))
	ec.Add("x", errors.New("ignored duplicate"))
	ec.Add("y", nil)

	assert.Equal(t, []string{"x"}, ec.IDs())
	assert.EqualError(t, ec.ToError(), "error processing x: first")

	ec.Add("z", errors.New("second"))
	assert.Contains(t, ec.ToError().Error(), "2 errors occurred")
}
