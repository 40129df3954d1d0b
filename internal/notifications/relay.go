package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"fricon-core/internal/models"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
)

// API is the notification REST collaborator.
type API interface {
	FetchNotifications(ctx context.Context, skip, take int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Counter is the unread notification counter.
type Counter interface {
	NotificationPushed()
	NotificationRead()
	AllNotificationsRead()
}

type Subscriber interface {
	On(event string, handler realtime.Handler) func()
}

// Relay keeps the notification list in step with pushes and read marks.
type Relay struct {
	api     API
	repo    repositories.NotificationRepository
	counter Counter

	mu     sync.Mutex
	onPush []func(models.Notification)
}

func NewRelay(api API, repo repositories.NotificationRepository, counter Counter) *Relay {
	return &Relay{api: api, repo: repo, counter: counter}
}

func (r *Relay) Start(sub Subscriber) {
	sub.On(realtime.EventSendPrivateNoti, realtime.Typed(realtime.EventSendPrivateNoti, r.HandlePush))
}

// OnPush registers a callback for every pushed notification.
func (r *Relay) OnPush(fn func(models.Notification)) {
	r.mu.Lock()
	r.onPush = append(r.onPush, fn)
	r.mu.Unlock()
}

// HandlePush merges a pushed notification. Revisions of a known notification
// count as unread again, so the counter goes up in both cases.
func (r *Relay) HandlePush(n models.Notification) {
	replaced := r.repo.Merge(n)
	r.counter.NotificationPushed()
	log.Debug().Str("notification_id", n.ID).Bool("replaced", replaced).Msg("notification pushed")

	r.mu.Lock()
	callbacks := slices.Clone(r.onPush)
	r.mu.Unlock()
	for _, fn := range callbacks {
		fn(n)
	}
}

// Load fetches a page. The first page replaces the list, later pages extend it.
func (r *Relay) Load(ctx context.Context, skip, take int) ([]models.Notification, error) {
	page, err := r.api.FetchNotifications(ctx, skip, take)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	if skip == 0 {
		r.repo.ReplaceAll(page)
	} else {
		r.repo.AppendPage(page)
	}
	return r.repo.List(), nil
}

func (r *Relay) List() []models.Notification {
	return r.repo.List()
}

// MarkRead marks one notification read on the backend, then locally.
func (r *Relay) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return models.NewError(models.CodeInvalidArgument, "notification id is required")
	}
	if err := r.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	wasUnread, err := r.repo.MarkRead(id)
	if err != nil && !errors.Is(err, repositories.ErrNotificationNotFound) {
		return err
	}
	// Not in the local page: the backend just confirmed it was unread there.
	if wasUnread || err != nil {
		r.counter.NotificationRead()
	}
	return nil
}

func (r *Relay) MarkAllRead(ctx context.Context) error {
	if err := r.api.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	r.repo.MarkAllRead()
	r.counter.AllNotificationsRead()
	return nil
}
