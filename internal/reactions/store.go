package reactions

import (
	"errors"
	"sync"

	"fricon-core/internal/models"
	"fricon-core/internal/repositories"
)

var ErrTargetNotFound = errors.New("reaction target not found")

// Target is anything carrying a reaction list.
type Target struct {
	Kind      models.TargetKind `json:"kind"`
	ID        string            `json:"id"`
	Reactions []models.Reaction `json:"reactions"`
	// Total is the displayed reaction tally. Posts and comments keep it
	// separately from the list because the list may be partial.
	Total int `json:"total"`
}

func (t Target) clone() Target {
	out := t
	out.Reactions = append([]models.Reaction(nil), t.Reactions...)
	return out
}

// TargetStore reads and writes reaction targets.
type TargetStore interface {
	Get(kind models.TargetKind, id string) (Target, error)
	Put(target Target) error
}

// Store serves messages from the open message log and keeps posts and
// comments registered through Track.
type Store struct {
	messages repositories.MessageLog

	mu      sync.RWMutex
	tracked map[string]Target
}

func NewStore(messages repositories.MessageLog) *Store {
	return &Store{messages: messages, tracked: make(map[string]Target)}
}

func key(kind models.TargetKind, id string) string {
	return string(kind) + ":" + id
}

// Track registers or refreshes a post or comment.
func (s *Store) Track(target Target) error {
	if target.Kind == models.TargetMessage || !target.Kind.Valid() {
		return models.NewError(models.CodeInvalidArgument, "only posts and comments can be tracked")
	}
	s.mu.Lock()
	s.tracked[key(target.Kind, target.ID)] = target.clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(kind models.TargetKind, id string) (Target, error) {
	if kind == models.TargetMessage {
		msg, err := s.messages.Get(id)
		if err != nil {
			return Target{}, ErrTargetNotFound
		}
		return Target{Kind: kind, ID: id, Reactions: msg.Reactions, Total: len(msg.Reactions)}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	target, ok := s.tracked[key(kind, id)]
	if !ok {
		return Target{}, ErrTargetNotFound
	}
	return target.clone(), nil
}

func (s *Store) Put(target Target) error {
	if target.Kind == models.TargetMessage {
		if err := s.messages.SetReactions(target.ID, target.Reactions); err != nil {
			return ErrTargetNotFound
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(target.Kind, target.ID)
	if _, ok := s.tracked[k]; !ok {
		return ErrTargetNotFound
	}
	s.tracked[k] = target.clone()
	return nil
}
