package unread

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

var _ CountSource = (*mocks.RESTClientMock)(nil)

func newTracker(t *testing.T) (*Tracker, *mocks.RESTClientMock, *repositories.ConversationRepo, *repositories.UserRepo) {
	t.Helper()
	source := new(mocks.RESTClientMock)
	convs := repositories.NewConversationRepo()
	users := repositories.NewUserRepo()
	return NewTracker("me", "FriCon", source, convs, users), source, convs, users
}

func TestRecomputeCountsUnreadConversations(t *testing.T) {
	tracker, _, convs, _ := newTracker(t)
	convs.SetNewest(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Status: models.StatusDelivered})
	convs.SetNewest(models.Message{ID: "m2", ConversationID: "c2", SenderID: "u3", Status: models.StatusSeen})
	convs.SetNewest(models.Message{ID: "m3", ConversationID: "c3", SenderID: "me", Status: models.StatusSent})
	convs.Upsert(models.Conversation{ID: "c4"})

	assert.Equal(t, 1, tracker.Recompute())
	assert.Equal(t, 1, tracker.MessageCount())

	convs.RefreshNewest(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Status: models.StatusSeen})
	assert.Equal(t, 0, tracker.Recompute())
}

func TestNotificationCounterLeavesTitle(t *testing.T) {
	tracker, _, _, _ := newTracker(t)
	var titles []string
	tracker.OnTitle(func(title string) { titles = append(titles, title) })

	tracker.NotificationPushed()
	tracker.NotificationPushed()
	assert.Equal(t, 2, tracker.NotificationCount())
	assert.Equal(t, "FriCon", tracker.Title())

	tracker.NotificationRead()
	tracker.NotificationRead()
	tracker.NotificationRead()
	assert.Equal(t, 0, tracker.NotificationCount())

	tracker.NotificationPushed()
	tracker.AllNotificationsRead()
	assert.Equal(t, 0, tracker.NotificationCount())
	assert.Empty(t, titles)
}

func TestTitleFollowsUnreadMessages(t *testing.T) {
	tracker, _, convs, _ := newTracker(t)
	var titles []string
	tracker.OnTitle(func(title string) { titles = append(titles, title) })

	convs.SetNewest(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Status: models.StatusDelivered})
	convs.SetNewest(models.Message{ID: "m2", ConversationID: "c2", SenderID: "u3", Status: models.StatusSent})
	assert.Equal(t, 2, tracker.Recompute())
	assert.Equal(t, "(2) FriCon", tracker.Title())

	tracker.NotificationPushed()
	assert.Equal(t, "(2) FriCon", tracker.Title())

	convs.RefreshNewest(models.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Status: models.StatusSeen})
	tracker.Recompute()
	assert.Equal(t, "(1) FriCon", tracker.Title())

	convs.RefreshNewest(models.Message{ID: "m2", ConversationID: "c2", SenderID: "u3", Status: models.StatusSeen})
	tracker.Recompute()
	assert.Equal(t, "FriCon", tracker.Title())

	assert.Equal(t, []string{"(2) FriCon", "(1) FriCon", "FriCon"}, titles)
}

func TestLoadSeedsCounters(t *testing.T) {
	tracker, source, _, _ := newTracker(t)
	source.On("UnreadMessageCount", mock.Anything).Return(4, nil).Once()
	source.On("UnreadNotificationCount", mock.Anything).Return(9, nil).Once()

	require.NoError(t, tracker.Load(context.Background()))
	snap := tracker.Snapshot()
	assert.Equal(t, Counts{Messages: 4, Notifications: 9, Title: "(4) FriCon"}, snap)
}

func TestLoadPartialFailureKeepsOtherCounter(t *testing.T) {
	tracker, source, _, _ := newTracker(t)
	tracker.NotificationPushed()
	source.On("UnreadMessageCount", mock.Anything).Return(2, nil).Once()
	source.On("UnreadNotificationCount", mock.Anything).Return(0, errors.New("boom")).Once()

	err := tracker.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, tracker.MessageCount())
	assert.Equal(t, 1, tracker.NotificationCount())
}

type fakeSubscriber struct {
	handlers map[string]realtime.Handler
	hooks    []func(context.Context)
}

func (s *fakeSubscriber) On(event string, handler realtime.Handler) func() {
	s.handlers[event] = handler
	return func() {}
}

func (s *fakeSubscriber) OnReconnect(hook func(context.Context)) {
	s.hooks = append(s.hooks, hook)
}

func TestReconnectRebuildsCountersFromREST(t *testing.T) {
	tracker, source, _, _ := newTracker(t)
	sub := &fakeSubscriber{handlers: map[string]realtime.Handler{}}
	tracker.Start(sub)
	require.Len(t, sub.hooks, 1)

	tracker.NotificationPushed()
	tracker.NotificationPushed()
	source.On("UnreadMessageCount", mock.Anything).Return(1, nil).Once()
	source.On("UnreadNotificationCount", mock.Anything).Return(5, nil).Once()

	sub.hooks[0](context.Background())
	assert.Equal(t, 5, tracker.NotificationCount())
	assert.Equal(t, 1, tracker.MessageCount())

	tracker.NotificationPushed()
	assert.Equal(t, 6, tracker.NotificationCount())
}

func TestPresenceUpdateMergesIntoConversations(t *testing.T) {
	tracker, _, convs, users := newTracker(t)
	convs.Upsert(models.Conversation{ID: "c1", Participants: []models.Participant{{UserID: "u2"}}})
	sub := &fakeSubscriber{handlers: map[string]realtime.Handler{}}
	tracker.Start(sub)

	body, err := json.Marshal(models.UserSummary{ID: "u2", FirstName: "Linh", Presence: models.PresenceOnline})
	require.NoError(t, err)
	sub.handlers[realtime.EventUpdateUser](body)

	user, ok := users.Get("u2")
	require.True(t, ok)
	assert.Equal(t, models.PresenceOnline, user.Presence)

	conv, err := convs.Get("c1")
	require.NoError(t, err)
	require.NotNil(t, conv.Participants[0].User)
	assert.Equal(t, "Linh", conv.Participants[0].User.FirstName)
}
