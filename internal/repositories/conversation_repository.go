package repositories

import (
	"errors"
	"sync"

	"fricon-core/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository holds the client-side conversation list.
type ConversationRepository interface {
	Upsert(conv models.Conversation)
	ReplaceAll(list []models.Conversation)
	Get(id string) (models.Conversation, error)
	List() []models.Conversation
	SetNewest(msg models.Message)
	RefreshNewest(msg models.Message) bool
	MergeUser(user models.UserSummary) int
}

// ConversationRepo is an in-memory ConversationRepository ordered by recency.
type ConversationRepo struct {
	mu    sync.RWMutex
	items map[string]*models.Conversation
	order []string
}

// NewConversationRepo constructs an empty ConversationRepo.
func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{items: make(map[string]*models.Conversation)}
}

// Upsert stores conv, keeping its position when it already exists.
func (r *ConversationRepo) Upsert(conv models.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneConversation(conv)
	if _, ok := r.items[conv.ID]; !ok {
		r.order = append(r.order, conv.ID)
	}
	r.items[conv.ID] = &stored
}

// ReplaceAll swaps the whole list, keeping the given order.
func (r *ConversationRepo) ReplaceAll(list []models.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*models.Conversation, len(list))
	r.order = r.order[:0]
	for _, conv := range list {
		stored := cloneConversation(conv)
		if _, ok := r.items[conv.ID]; !ok {
			r.order = append(r.order, conv.ID)
		}
		r.items[conv.ID] = &stored
	}
}

// Get returns a copy of the conversation.
func (r *ConversationRepo) Get(id string) (models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.items[id]
	if !ok {
		return models.Conversation{}, ErrConversationNotFound
	}
	return cloneConversation(*conv), nil
}

// List returns copies of every conversation, most recently active first.
func (r *ConversationRepo) List() []models.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Conversation, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneConversation(*r.items[id]))
	}
	return out
}

// SetNewest points the conversation at msg and moves it to the front. Unknown
// conversations get a stub entry so the pointer is never lost.
func (r *ConversationRepo) SetNewest(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[msg.ConversationID]
	if !ok {
		conv = &models.Conversation{ID: msg.ConversationID, CreatedAt: msg.CreatedAt}
		r.items[msg.ConversationID] = conv
	} else {
		r.removeFromOrder(msg.ConversationID)
	}
	r.order = append([]string{msg.ConversationID}, r.order...)

	newest := msg.Clone()
	if conv.NewestMessage != nil && conv.NewestMessage.ID == msg.ID {
		newest.Status = conv.NewestMessage.Status.Advance(msg.Status)
	}
	conv.NewestMessage = &newest
}

// RefreshNewest replaces the newest pointer if it already refers to msg. The
// status never regresses. It reports whether anything changed.
func (r *ConversationRepo) RefreshNewest(msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.items[msg.ConversationID]
	if !ok || conv.NewestMessage == nil || conv.NewestMessage.ID != msg.ID {
		return false
	}
	updated := msg.Clone()
	updated.Status = conv.NewestMessage.Status.Advance(msg.Status)
	conv.NewestMessage = &updated
	return true
}

// MergeUser copies a fresh user record into every participant entry of that
// user and returns how many entries changed.
func (r *ConversationRepo) MergeUser(user models.UserSummary) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for _, conv := range r.items {
		for i := range conv.Participants {
			if conv.Participants[i].UserID != user.ID {
				continue
			}
			u := user
			conv.Participants[i].User = &u
			changed++
		}
	}
	return changed
}

func (r *ConversationRepo) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func cloneConversation(conv models.Conversation) models.Conversation {
	out := conv
	if conv.Participants != nil {
		out.Participants = make([]models.Participant, len(conv.Participants))
		for i, p := range conv.Participants {
			out.Participants[i] = p
			if p.User != nil {
				u := *p.User
				out.Participants[i].User = &u
			}
		}
	}
	if conv.NewestMessage != nil {
		newest := conv.NewestMessage.Clone()
		out.NewestMessage = &newest
	}
	return out
}
