package store

import (
	"context"
	"fmt"

	"github.com/carenet/apiserver/types"
)

// MemoryUserRepository is a read-only user set built once at startup.
// It is safe for concurrent use because nothing mutates it after construction.
type MemoryUserRepository struct {
	byID       map[int]types.User
	byUsername map[string]types.User
}

// NewMemoryUserRepository indexes users by id and username. Duplicate ids or
// usernames are rejected.
func NewMemoryUserRepository(users []types.User) (*MemoryUserRepository, error) {
	repo := &MemoryUserRepository{
		byID:       make(map[int]types.User, len(users)),
		byUsername: make(map[string]types.User, len(users)),
	}
	for _, user := range users {
		if _, exists := repo.byID[user.ID]; exists {
			return nil, fmt.Errorf("duplicate user id %d", user.ID)
		}
		if _, exists := repo.byUsername[user.Username]; exists {
			return nil, fmt.Errorf("duplicate username %q", user.Username)
		}
		repo.byID[user.ID] = user
		repo.byUsername[user.Username] = user
	}
	return repo, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	user, ok := r.byUsername[username]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}
