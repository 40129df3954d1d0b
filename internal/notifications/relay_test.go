package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fricon-core/internal/mocks"
	"fricon-core/internal/models"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
)

var _ API = (*mocks.RESTClientMock)(nil)

type countingCounter struct {
	n int
}

func (c *countingCounter) NotificationPushed() { c.n++ }
func (c *countingCounter) NotificationRead() {
	if c.n > 0 {
		c.n--
	}
}
func (c *countingCounter) AllNotificationsRead() { c.n = 0 }

func newRelay(t *testing.T) (*Relay, *mocks.RESTClientMock, *repositories.NotificationRepo, *countingCounter) {
	t.Helper()
	api := new(mocks.RESTClientMock)
	repo := repositories.NewNotificationRepo()
	counter := &countingCounter{}
	return NewRelay(api, repo, counter), api, repo, counter
}

func TestHandlePushMergesAndCounts(t *testing.T) {
	relay, _, repo, counter := newRelay(t)
	var pushed []string
	relay.OnPush(func(n models.Notification) { pushed = append(pushed, n.ID) })

	relay.HandlePush(models.Notification{ID: "n1", Content: "liked", Unread: true})
	relay.HandlePush(models.Notification{ID: "n2", Content: "commented", Unread: true})
	relay.HandlePush(models.Notification{ID: "n1", Content: "liked x2", Unread: true})

	list := repo.List()
	require.Len(t, list, 2)
	assert.Equal(t, "n2", list[0].ID)
	assert.Equal(t, "liked x2", list[1].Content)
	assert.Equal(t, 3, counter.n)
	assert.Equal(t, []string{"n1", "n2", "n1"}, pushed)
}

func TestStartSubscribesToNotificationPushes(t *testing.T) {
	relay, _, repo, _ := newRelay(t)
	handlers := map[string]realtime.Handler{}
	relay.Start(subscriberFunc(func(event string, h realtime.Handler) func() {
		handlers[event] = h
		return func() {}
	}))

	body, err := json.Marshal(models.Notification{ID: "n9", Unread: true})
	require.NoError(t, err)
	handlers[realtime.EventSendPrivateNoti](body)
	assert.Len(t, repo.List(), 1)
}

type subscriberFunc func(event string, h realtime.Handler) func()

func (f subscriberFunc) On(event string, h realtime.Handler) func() { return f(event, h) }

func TestMarkReadAdjustsCounterOnce(t *testing.T) {
	relay, api, repo, counter := newRelay(t)
	repo.ReplaceAll([]models.Notification{{ID: "n1", Unread: true}, {ID: "n2", Unread: true}})
	counter.n = 2
	api.On("MarkNotificationRead", mock.Anything, "n1").Return(nil).Twice()

	require.NoError(t, relay.MarkRead(context.Background(), "n1"))
	require.NoError(t, relay.MarkRead(context.Background(), "n1"))
	assert.Equal(t, 1, counter.n)
	assert.False(t, repo.List()[0].Unread)
}

func TestMarkReadUnknownLocallyStillDecrements(t *testing.T) {
	relay, api, _, counter := newRelay(t)
	counter.n = 1
	api.On("MarkNotificationRead", mock.Anything, "n7").Return(nil).Once()

	require.NoError(t, relay.MarkRead(context.Background(), "n7"))
	assert.Equal(t, 0, counter.n)
}

func TestMarkReadFailureChangesNothing(t *testing.T) {
	relay, api, repo, counter := newRelay(t)
	repo.ReplaceAll([]models.Notification{{ID: "n1", Unread: true}})
	counter.n = 1
	api.On("MarkNotificationRead", mock.Anything, "n1").Return(errors.New("down")).Once()

	require.Error(t, relay.MarkRead(context.Background(), "n1"))
	assert.Equal(t, 1, counter.n)
	assert.True(t, repo.List()[0].Unread)
	assert.Error(t, relay.MarkRead(context.Background(), ""))
}

func TestMarkAllRead(t *testing.T) {
	relay, api, repo, counter := newRelay(t)
	repo.ReplaceAll([]models.Notification{{ID: "n1", Unread: true}, {ID: "n2", Unread: true}})
	counter.n = 5
	api.On("MarkAllNotificationsRead", mock.Anything).Return(nil).Once()

	require.NoError(t, relay.MarkAllRead(context.Background()))
	assert.Equal(t, 0, counter.n)
	for _, n := range relay.List() {
		assert.False(t, n.Unread)
	}
}

func TestLoadPages(t *testing.T) {
	relay, api, _, _ := newRelay(t)
	api.On("FetchNotifications", mock.Anything, 0, 2).Return([]models.Notification{{ID: "n3"}, {ID: "n2"}}, nil).Once()
	api.On("FetchNotifications", mock.Anything, 2, 2).Return([]models.Notification{{ID: "n1"}}, nil).Once()

	list, err := relay.Load(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = relay.Load(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "n1", list[2].ID)
}
