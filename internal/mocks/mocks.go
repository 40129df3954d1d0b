package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"fricon-core/internal/models"
	"fricon-core/internal/rest"
)

// InvokerMock stands in for the realtime client. Tests fill the reply through
// Run, reading it from args.Get(3).
type InvokerMock struct {
	mock.Mock
}

func (m *InvokerMock) Invoke(ctx context.Context, procedure string, payload, reply any) error {
	args := m.Called(ctx, procedure, payload, reply)
	return args.Error(0)
}

type RESTClientMock struct {
	mock.Mock
}

func (m *RESTClientMock) UnreadMessageCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *RESTClientMock) UnreadNotificationCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *RESTClientMock) FetchConversations(ctx context.Context) ([]models.Conversation, error) {
	args := m.Called(ctx)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) FetchMessages(ctx context.Context, conversationID string, skip, take int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, skip, take)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) ReactMessage(ctx context.Context, messageID, symbol string) (rest.ReactionResult, error) {
	args := m.Called(ctx, messageID, symbol)
	return args.Get(0).(rest.ReactionResult), args.Error(1)
}

func (m *RESTClientMock) ReactPost(ctx context.Context, postID, symbol string) (rest.ReactionResult, error) {
	args := m.Called(ctx, postID, symbol)
	return args.Get(0).(rest.ReactionResult), args.Error(1)
}

func (m *RESTClientMock) ReactComment(ctx context.Context, commentID, symbol string) (rest.ReactionResult, error) {
	args := m.Called(ctx, commentID, symbol)
	return args.Get(0).(rest.ReactionResult), args.Error(1)
}

func (m *RESTClientMock) MarkPostsSeen(ctx context.Context, posts []models.SeenPost) error {
	args := m.Called(ctx, posts)
	return args.Error(0)
}

func (m *RESTClientMock) FetchNotifications(ctx context.Context, skip, take int) ([]models.Notification, error) {
	args := m.Called(ctx, skip, take)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *RESTClientMock) MarkNotificationRead(ctx context.Context, notificationID string) error {
	args := m.Called(ctx, notificationID)
	return args.Error(0)
}

func (m *RESTClientMock) MarkAllNotificationsRead(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ interface {
	Invoke(context.Context, string, any, any) error
} = (*InvokerMock)(nil)

// RESTClientMock mirrors every method of rest.Client.
var _ interface {
	UnreadMessageCount(context.Context) (int, error)
	UnreadNotificationCount(context.Context) (int, error)
	FetchConversations(context.Context) ([]models.Conversation, error)
	FetchMessages(context.Context, string, int, int) ([]models.Message, error)
	ReactMessage(context.Context, string, string) (rest.ReactionResult, error)
	ReactPost(context.Context, string, string) (rest.ReactionResult, error)
	ReactComment(context.Context, string, string) (rest.ReactionResult, error)
	MarkPostsSeen(context.Context, []models.SeenPost) error
	FetchNotifications(context.Context, int, int) ([]models.Notification, error)
	MarkNotificationRead(context.Context, string) error
	MarkAllNotificationsRead(context.Context) error
} = (*RESTClientMock)(nil)
