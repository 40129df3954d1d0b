package repositories

import (
	"errors"
	"sync"

	"fricon-core/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository holds the notification list, newest first.
type NotificationRepository interface {
	Merge(n models.Notification) bool
	ReplaceAll(list []models.Notification)
	AppendPage(list []models.Notification)
	MarkRead(id string) (bool, error)
	MarkAllRead() int
	List() []models.Notification
}

type NotificationRepo struct {
	mu    sync.RWMutex
	items []models.Notification
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

// Merge replaces the notification in place when its id is known, otherwise
// prepends it. It reports whether it replaced.
func (r *NotificationRepo) Merge(n models.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == n.ID {
			r.items[i] = n
			return true
		}
	}
	r.items = append([]models.Notification{n}, r.items...)
	return false
}

func (r *NotificationRepo) ReplaceAll(list []models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append([]models.Notification(nil), list...)
}

// AppendPage adds an older page, skipping ids already present.
func (r *NotificationRepo) AppendPage(list []models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(r.items))
	for _, n := range r.items {
		seen[n.ID] = struct{}{}
	}
	for _, n := range list {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		r.items = append(r.items, n)
	}
}

// MarkRead clears the unread flag and reports whether it was set.
func (r *NotificationRepo) MarkRead(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			was := r.items[i].Unread
			r.items[i].Unread = false
			return was, nil
		}
	}
	return false, ErrNotificationNotFound
}

// MarkAllRead clears every unread flag and returns how many were set.
func (r *NotificationRepo) MarkAllRead() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.items {
		if r.items[i].Unread {
			r.items[i].Unread = false
			n++
		}
	}
	return n
}

func (r *NotificationRepo) List() []models.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Notification(nil), r.items...)
}
