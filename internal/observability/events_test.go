package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fricon-core/internal/mocks"
)

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	require.NoError(t, PublishEvent(context.Background(), RouteSeenFlush, "seen_flush", nil, nil))
}

func TestPublishEventWrapsPayload(t *testing.T) {
	pub := new(mocks.PublisherMock)
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	headers := BuildHeaders("req-1", "")
	pub.On("Publish", mock.Anything, RouteMessageSent, mock.MatchedBy(func(ev any) bool {
		env, ok := ev.(EventEnvelope)
		return ok && env.EventName == "message_sent" && env.EventType == "delivery_events"
	}), headers).Return(assert.AnError).Once()

	err := PublishEvent(context.Background(), RouteMessageSent, "message_sent", map[string]string{"id": "m-1"}, headers)
	require.ErrorIs(t, err, assert.AnError)
	pub.AssertExpectations(t)
}

func TestBuildHeaders(t *testing.T) {
	assert.Empty(t, BuildHeaders("", ""))
	assert.Equal(t, map[string]string{"x-request-id": "r", "trace_id": "t"}, BuildHeaders("r", "t"))
}
