package infra

import (
	"context"
	"sync"

	"access-gate/middleware/accessctl/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// MemoryStatsStore acumula decisões de cota em memória.
// Útil para testes e desenvolvimento; não expira nada.
type MemoryStatsStore struct {
	mu           sync.Mutex
	total        Counters
	byCategory   map[domain.Category]Counters
	byRoute      map[string]Counters
	byIdentifier map[string]Counters

	trackIdentifiers bool
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackIdentifiers liga contadores por "categoria:identificador".
func WithTrackIdentifiers(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackIdentifiers = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byCategory:   make(map[domain.Category]Counters),
		byRoute:      make(map[string]Counters),
		byIdentifier: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byCategory[ev.Category]
	c.add(ev.Allowed)
	s.byCategory[ev.Category] = c

	route := ev.Method + " " + ev.Path
	r := s.byRoute[route]
	r.add(ev.Allowed)
	s.byRoute[route] = r

	if s.trackIdentifiers {
		id := domain.NewQuotaKey(ev.Category, ev.Identifier).String()
		k := s.byIdentifier[id]
		k.add(ev.Allowed)
		s.byIdentifier[id] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByCategory() map[domain.Category]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Category]Counters, len(s.byCategory))
	for k, v := range s.byCategory {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByIdentifier() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byIdentifier))
	for k, v := range s.byIdentifier {
		out[k] = v
	}
	return out
}
