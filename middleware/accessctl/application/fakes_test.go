package application

import (
	"context"
	"sync"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// countingStore é um QuotaStore mínimo que só conta chamadas.
type countingStore struct {
	mu      sync.Mutex
	checks  int
	verdict domain.Verdict
	err     error
	stats   domain.QuotaStats
	cleared map[domain.Category]int
}

func (s *countingStore) Check(_ context.Context, _ domain.QuotaKey, _ domain.Limit, _ time.Time) (domain.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks++
	return s.verdict, s.err
}

func (s *countingStore) SweepExpired(context.Context, time.Time) (int, error) { return 0, nil }

func (s *countingStore) Stats(context.Context) (domain.QuotaStats, error) { return s.stats, s.err }

func (s *countingStore) ClearAll(context.Context) (int, error) { return s.stats.Total, s.err }

func (s *countingStore) ClearCategory(_ context.Context, c domain.Category) (int, error) {
	return s.cleared[c], s.err
}

// memRepo é um BanRepository em memória com contador de escritas.
type memRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	saves    int
	lifts    int
	getErr   error
	saveErr  error
	liftErr  error
	// beforeLift roda sem o lock, entre a leitura do gate e o UPDATE condicional.
	beforeLift func()
}

func newMemRepo(accs ...domain.Account) *memRepo {
	r := &memRepo{accounts: make(map[string]domain.Account)}
	for _, a := range accs {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return domain.Account{}, r.getErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (r *memRepo) SaveBan(_ context.Context, id string, rec domain.BanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Ban = rec
	r.accounts[id] = a
	r.saves++
	return nil
}

func (r *memRepo) LiftExpired(_ context.Context, id string, now time.Time) (bool, error) {
	if r.beforeLift != nil {
		r.beforeLift()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.liftErr != nil {
		return false, r.liftErr
	}
	a, ok := r.accounts[id]
	if !ok || !a.Ban.IsBanned || a.Ban.ExpiresAt == nil || a.Ban.ExpiresAt.After(now) {
		return false, nil
	}
	a.Ban = domain.Lifted()
	r.accounts[id] = a
	r.lifts++
	return true, nil
}

func ptr[T any](v T) *T { return &v }
