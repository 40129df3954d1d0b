package repositories

import (
	"sync"

	"fricon-core/internal/models"
)

// UserCache keeps the latest known record of every user seen on the wire.
type UserCache interface {
	Put(user models.UserSummary)
	Get(id string) (models.UserSummary, bool)
}

type UserRepo struct {
	mu    sync.RWMutex
	users map[string]models.UserSummary
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]models.UserSummary)}
}

func (r *UserRepo) Put(user models.UserSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *UserRepo) Get(id string) (models.UserSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return user, ok
}
