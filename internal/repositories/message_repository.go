package repositories

import (
	"errors"
	"sync"

	"fricon-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageLog is the chronological log of the conversation being viewed.
type MessageLog interface {
	Open(conversationID string, page []models.Message)
	Close()
	OpenID() string
	Prepend(conversationID string, older []models.Message) int
	Append(msg models.Message) bool
	Replace(msg models.Message) bool
	SetStatus(id string, status models.Status) bool
	Get(id string) (models.Message, error)
	SetReactions(id string, reactions []models.Reaction) error
	Newest() (models.Message, bool)
	Messages() []models.Message
	Len() int
}

// MessageRepo is an in-memory MessageLog.
type MessageRepo struct {
	mu             sync.RWMutex
	conversationID string
	messages       []models.Message
	index          map[string]int
}

// NewMessageRepo constructs a MessageRepo with no open conversation.
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{index: make(map[string]int)}
}

// Open replaces the log with the first page of conversationID.
func (r *MessageRepo) Open(conversationID string, page []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversationID = conversationID
	r.messages = r.messages[:0]
	for _, msg := range page {
		r.messages = append(r.messages, msg.Clone())
	}
	r.reindex()
}

func (r *MessageRepo) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversationID = ""
	r.messages = nil
	r.index = make(map[string]int)
}

func (r *MessageRepo) OpenID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversationID
}

// Prepend adds an older page in front of the log and returns how many
// messages were new. Pages for another conversation are discarded.
func (r *MessageRepo) Prepend(conversationID string, older []models.Message) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conversationID != r.conversationID {
		return 0
	}
	fresh := make([]models.Message, 0, len(older))
	for _, msg := range older {
		if _, ok := r.index[msg.ID]; ok {
			continue
		}
		fresh = append(fresh, msg.Clone())
	}
	r.messages = append(fresh, r.messages...)
	r.reindex()
	return len(fresh)
}

// Append adds msg iff its conversation is the open one and it is not logged yet.
func (r *MessageRepo) Append(msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conversationID == "" || msg.ConversationID != r.conversationID {
		return false
	}
	if _, ok := r.index[msg.ID]; ok {
		return false
	}
	r.messages = append(r.messages, msg.Clone())
	r.index[msg.ID] = len(r.messages) - 1
	return true
}

// Replace swaps the logged message with the same id. The status never regresses.
func (r *MessageRepo) Replace(msg models.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[msg.ID]
	if !ok {
		return false
	}
	updated := msg.Clone()
	updated.Status = r.messages[i].Status.Advance(msg.Status)
	r.messages[i] = updated
	return true
}

// SetStatus advances the status of a logged message.
func (r *MessageRepo) SetStatus(id string, status models.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.messages[i].Status = r.messages[i].Status.Advance(status)
	return true
}

func (r *MessageRepo) Get(id string) (models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return r.messages[i].Clone(), nil
}

func (r *MessageRepo) SetReactions(id string, reactions []models.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	r.messages[i].Reactions = append([]models.Reaction(nil), reactions...)
	return nil
}

// Newest returns the last message of the log.
func (r *MessageRepo) Newest() (models.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.messages) == 0 {
		return models.Message{}, false
	}
	return r.messages[len(r.messages)-1].Clone(), true
}

func (r *MessageRepo) Messages() []models.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Message, len(r.messages))
	for i, msg := range r.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (r *MessageRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

func (r *MessageRepo) reindex() {
	r.index = make(map[string]int, len(r.messages))
	for i, msg := range r.messages {
		r.index[msg.ID] = i
	}
}
