// Package memory holds in-process repositories for tests and the memory
// backend.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/board/internal/domain"
)

type AccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]domain.Account
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{accounts: make(map[uuid.UUID]domain.Account)}
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(account.Email)
	for _, a := range r.accounts {
		if a.Email == email {
			return domain.ErrEmailAlreadyInUse
		}
	}
	stored := *account
	stored.Email = email
	r.accounts[account.ID] = stored
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = strings.ToLower(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *AccountRepo) UpdateDisplayName(ctx context.Context, id uuid.UUID, displayName string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	a.DisplayName = displayName
	a.UpdatedAt = updatedAt
	r.accounts[id] = a
	return nil
}

func (r *AccountRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}
