package infra

import (
	"context"
	"sync"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// MemoryBanRepository guarda contas em memória. Para desenvolvimento e para o
// exemplo embutido; não persiste nada.
type MemoryBanRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

var _ domain.BanRepository = (*MemoryBanRepository)(nil)

func NewMemoryBanRepository(accounts ...domain.Account) *MemoryBanRepository {
	r := &MemoryBanRepository{accounts: make(map[string]domain.Account, len(accounts))}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *MemoryBanRepository) Get(_ context.Context, userID string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[userID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (r *MemoryBanRepository) SaveBan(_ context.Context, userID string, rec domain.BanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Ban = rec
	r.accounts[userID] = a
	return nil
}

func (r *MemoryBanRepository) LiftExpired(_ context.Context, userID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[userID]
	if !ok || !a.Ban.IsBanned || a.Ban.ExpiresAt == nil || a.Ban.ExpiresAt.After(now) {
		return false, nil
	}
	a.Ban = domain.Lifted()
	r.accounts[userID] = a
	return true, nil
}

func (r *MemoryBanRepository) CreateAccount(_ context.Context, id, role string) error {
	if role == "" {
		role = "user"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[id] = domain.Account{ID: id, Role: role}
	return nil
}
