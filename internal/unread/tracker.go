package unread

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"fricon-core/internal/models"
	"fricon-core/internal/observability"
	"fricon-core/internal/realtime"
	"fricon-core/internal/repositories"
)

// CountSource serves the authoritative unread counts.
type CountSource interface {
	UnreadMessageCount(ctx context.Context) (int, error)
	UnreadNotificationCount(ctx context.Context) (int, error)
}

// Subscriber is the slice of the realtime client the tracker listens on.
type Subscriber interface {
	On(event string, handler realtime.Handler) func()
	OnReconnect(hook func(context.Context))
}

// Counts is a snapshot of both unread counters.
type Counts struct {
	Messages      int    `json:"messages"`
	Notifications int    `json:"notifications"`
	Title         string `json:"title"`
}

// Tracker owns the unread message and notification counters and the
// document title derived from them.
type Tracker struct {
	userID    string
	baseTitle string
	source    CountSource
	convs     repositories.ConversationRepository
	users     repositories.UserCache

	mu            sync.Mutex
	messages      int
	notifications int
	title         string
	onTitle       []func(string)
}

func NewTracker(userID, baseTitle string, source CountSource, convs repositories.ConversationRepository, users repositories.UserCache) *Tracker {
	return &Tracker{
		userID:    userID,
		baseTitle: baseTitle,
		source:    source,
		convs:     convs,
		users:     users,
		title:     baseTitle,
	}
}

// Start subscribes to presence pushes and re-seeds the counters after every
// reconnect.
func (t *Tracker) Start(sub Subscriber) {
	sub.On(realtime.EventUpdateUser, realtime.Typed(realtime.EventUpdateUser, t.HandleUserUpdate))
	sub.OnReconnect(func(ctx context.Context) {
		if err := t.Load(ctx); err != nil {
			log.Warn().Err(err).Msg("unread reload after reconnect failed")
		}
	})
}

// OnTitle registers a callback fired whenever the title changes.
func (t *Tracker) OnTitle(fn func(string)) {
	t.mu.Lock()
	t.onTitle = append(t.onTitle, fn)
	t.mu.Unlock()
}

func (t *Tracker) MessageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages
}

func (t *Tracker) NotificationCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notifications
}

// Title is the base title, prefixed with "(n) " while n conversations hold
// unread messages. Notifications never affect it.
func (t *Tracker) Title() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.title
}

func (t *Tracker) Snapshot() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{Messages: t.messages, Notifications: t.notifications, Title: t.title}
}

func formatTitle(base string, n int) string {
	if n <= 0 {
		return base
	}
	return fmt.Sprintf("(%d) %s", n, base)
}

// update applies fn under the lock, then fires title callbacks outside it.
func (t *Tracker) update(fn func()) {
	t.mu.Lock()
	fn()
	if t.messages < 0 {
		t.messages = 0
	}
	if t.notifications < 0 {
		t.notifications = 0
	}
	observability.SetUnreadMessages(t.messages)
	observability.SetUnreadNotifications(t.notifications)

	title := formatTitle(t.baseTitle, t.messages)
	changed := title != t.title
	t.title = title
	callbacks := slices.Clone(t.onTitle)
	t.mu.Unlock()

	if !changed {
		return
	}
	for _, cb := range callbacks {
		cb(title)
	}
}

// Recompute counts conversations whose newest message awaits the local user.
func (t *Tracker) Recompute() int {
	n := 0
	for _, conv := range t.convs.List() {
		if conv.Unread(t.userID) {
			n++
		}
	}
	t.update(func() { t.messages = n })
	return n
}

// Load seeds both counters from the REST collaborators. A failing source
// leaves its counter unchanged.
func (t *Tracker) Load(ctx context.Context) error {
	messages, msgErr := t.source.UnreadMessageCount(ctx)
	notifications, notiErr := t.source.UnreadNotificationCount(ctx)

	t.update(func() {
		if msgErr == nil {
			t.messages = messages
		}
		if notiErr == nil {
			t.notifications = notifications
		}
	})
	if err := errors.Join(msgErr, notiErr); err != nil {
		return fmt.Errorf("load unread counts: %w", err)
	}
	return nil
}

// NotificationPushed counts a pushed notification, including revisions of
// known ones.
func (t *Tracker) NotificationPushed() {
	t.update(func() { t.notifications++ })
}

func (t *Tracker) NotificationRead() {
	t.update(func() { t.notifications-- })
}

func (t *Tracker) AllNotificationsRead() {
	t.update(func() { t.notifications = 0 })
}

// HandleUserUpdate merges a presence push into the user cache and every
// conversation the user takes part in.
func (t *Tracker) HandleUserUpdate(user models.UserSummary) {
	if user.ID == "" {
		return
	}
	t.users.Put(user)
	changed := t.convs.MergeUser(user)
	log.Debug().Str("user_id", user.ID).Str("presence", string(user.Presence)).Int("participants", changed).Msg("presence updated")
}
