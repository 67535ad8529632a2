package eventbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmind/internal/domain/events"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*eventbridge.PutEventsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func manyEvents(n int) []events.DomainEvent {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeCreated("n", "T", ts)
	}
	return out
}

func TestPublisher_SplitsBatches(t *testing.T) {
	// Arrange
	client := new(mockEventBridge)
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)
	p := NewPublisher(client, "bus", "", 10, zap.NewNop())

	// Act
	err := p.PublishBatch(context.Background(), manyEvents(23))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublisher_EntryShape(t *testing.T) {
	client := new(mockEventBridge)
	var got types.PutEventsRequestEntry
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*eventbridge.PutEventsInput).Entries[0] }).
		Return(&eventbridge.PutEventsOutput{}, nil)
	p := NewPublisher(client, "bus", "graphmind.test", 10, zap.NewNop())

	ev := events.NewNodeDeleted("n1", []string{"r1"}, time.Now())
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, "bus", aws.ToString(got.EventBusName))
	assert.Equal(t, "graphmind.test", aws.ToString(got.Source))
	assert.Equal(t, events.TypeNodeDeleted, aws.ToString(got.DetailType))
	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(got.Detail)), &detail))
	assert.Equal(t, "n1", detail["node_id"])
}

func TestPublisher_FailedEntries(t *testing.T) {
	client := new(mockEventBridge)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")}},
	}, nil)
	p := NewPublisher(client, "bus", "", 10, zap.NewNop())

	err := p.PublishBatch(context.Background(), manyEvents(1))

	assert.EqualError(t, err, "1 of 1 graph events rejected")
}

func TestPublisher_EmptyBatchIsNoop(t *testing.T) {
	client := new(mockEventBridge)
	p := NewPublisher(client, "bus", "", 10, zap.NewNop())

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
}
