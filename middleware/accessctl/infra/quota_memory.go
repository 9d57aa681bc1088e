package infra

import (
	"context"
	"sync"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// MemoryQuotaStore é a tabela de cotas em memória do processo, com janela fixa
// e expiração preguiçosa.
//
// Um único mutex protege o mapa inteiro: check, sweep e clears são atômicos
// entre si. O estado não sobrevive a restart nem é compartilhado entre instâncias.
type MemoryQuotaStore struct {
	mu         sync.Mutex
	entries    map[domain.QuotaKey]*domain.QuotaEntry
	sweepEvery time.Duration
	now        func() time.Time
}

var _ domain.QuotaStore = (*MemoryQuotaStore)(nil)

type MemoryQuotaOption func(*MemoryQuotaStore)

// WithSweepEvery define a cadência do janitor. <= 0 desliga o janitor.
func WithSweepEvery(d time.Duration) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.sweepEvery = d }
}

// WithClock troca o relógio usado pelo janitor.
func WithClock(now func() time.Time) MemoryQuotaOption {
	return func(s *MemoryQuotaStore) { s.now = now }
}

func NewMemoryQuotaStore(opts ...MemoryQuotaOption) *MemoryQuotaStore {
	s := &MemoryQuotaStore{
		entries:    make(map[domain.QuotaKey]*domain.QuotaEntry),
		sweepEvery: 5 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryQuotaStore) SweepEvery() time.Duration { return s.sweepEvery }

func (s *MemoryQuotaStore) Check(_ context.Context, key domain.QuotaKey, limit domain.Limit, now time.Time) (domain.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok || ent.Expired(now) {
		ent = &domain.QuotaEntry{Count: 1, WindowResetAt: now.Add(limit.Window)}
		s.entries[key] = ent
		return domain.Verdict{Allowed: true, Remaining: limit.Max - 1, ResetAt: ent.WindowResetAt}, nil
	}

	if ent.Count >= limit.Max {
		// rejeição não mexe na entrada: retentar não empurra a janela
		return domain.Verdict{Allowed: false, Remaining: 0, ResetAt: ent.WindowResetAt}, nil
	}

	ent.Count++
	return domain.Verdict{Allowed: true, Remaining: limit.Max - ent.Count, ResetAt: ent.WindowResetAt}, nil
}

func (s *MemoryQuotaStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.Expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryQuotaStore) Stats(context.Context) (domain.QuotaStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.QuotaStats{
		Total:      len(s.entries),
		ByCategory: make(map[domain.Category]int),
	}
	for k := range s.entries {
		st.ByCategory[k.Category]++
	}
	return st, nil
}

func (s *MemoryQuotaStore) ClearAll(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[domain.QuotaKey]*domain.QuotaEntry)
	return n, nil
}

func (s *MemoryQuotaStore) ClearCategory(_ context.Context, c domain.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k := range s.entries {
		if k.Category == c {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Entry devolve uma cópia da entrada, para inspeção em testes e CLI.
func (s *MemoryQuotaStore) Entry(key domain.QuotaKey) (domain.QuotaEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok {
		return domain.QuotaEntry{}, false
	}
	return *ent, true
}

// StartJanitor inicia uma goroutine que remove janelas expiradas periodicamente.
// Pare cancelando o contexto. onSweep (opcional) recebe quantas entradas saíram.
func (s *MemoryQuotaStore) StartJanitor(ctx context.Context, onSweep func(removed int)) {
	if s.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, _ := s.SweepExpired(ctx, s.now())
				if onSweep != nil {
					onSweep(n)
				}
			}
		}
	}()
}
