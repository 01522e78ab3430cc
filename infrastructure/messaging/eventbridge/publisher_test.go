package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"citegraph/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(params)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func paperEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewPaperAdded(fmt.Sprintf("p%d", i), "Title", 2020, time.Unix(0, 0))
	}
	return out
}

func TestPublisher_BatchesByTen(t *testing.T) {
	api := &mockAPI{}
	var sizes []int
	api.On("PutEvents", mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(0).(*eventbridge.PutEventsInput)
		sizes = append(sizes, len(in.Entries))
		assert.Equal(t, "bus", aws.ToString(in.Entries[0].EventBusName))
		assert.Equal(t, DefaultSource, aws.ToString(in.Entries[0].Source))
		assert.Equal(t, events.TypePaperAdded, aws.ToString(in.Entries[0].DetailType))
	}).Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(api, "bus", "", zap.NewNop())
	require.NoError(t, p.Publish(context.Background(), paperEvents(23)...))
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublisher_NothingToSend(t *testing.T) {
	api := &mockAPI{}
	p := NewPublisher(api, "bus", "", zap.NewNop())
	require.NoError(t, p.Publish(context.Background()))
	api.AssertNotCalled(t, "PutEvents", mock.Anything)
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		api := &mockAPI{}
		cause := errors.New("throttled")
		api.On("PutEvents", mock.Anything).Return(nil, cause)

		err := NewPublisher(api, "bus", "", zap.NewNop()).Publish(context.Background(), paperEvents(1)...)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("failed entries", func(t *testing.T) {
		api := &mockAPI{}
		api.On("PutEvents", mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("ok")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try again")},
			},
		}, nil)

		err := NewPublisher(api, "bus", "", zap.NewNop()).Publish(context.Background(), paperEvents(2)...)
		assert.EqualError(t, err, "1 events failed to publish")
	})
}
