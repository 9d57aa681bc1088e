package infra

import (
	"context"
	"sync"
	"time"

	"access-gate/middleware/accessctl/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore guarda um token bucket (x/time/rate) por chave, com limpeza
// de chaves ociosas. Usado no throttle da superfície admin, onde suavizar
// rajadas importa mais que contar janelas.
type TokenBucketStore struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var _ domain.LimiterStore = (*TokenBucketStore)(nil)

type TokenBucketOption func(*TokenBucketStore)

func WithIdleTTL(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) TokenBucketOption {
	return func(s *TokenBucketStore) { s.cleanupEvery = d }
}

// NewTokenBucketStore cria o store; perMinute é a taxa de reposição em eventos/min.
func NewTokenBucketStore(perMinute float64, burst int, opts ...TokenBucketOption) *TokenBucketStore {
	s := &TokenBucketStore{
		buckets:      make(map[string]*bucket),
		rps:          rate.Limit(perMinute / 60),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenBucketStore) PerMinute() float64 { return float64(s.rps) * 60 }
func (s *TokenBucketStore) Burst() int         { return s.burst }

// Get implementa domain.LimiterStore.
func (s *TokenBucketStore) Get(key string) domain.Limiter {
	return s.limiter(key)
}

func (s *TokenBucketStore) limiter(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.buckets[key] = &bucket{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove chaves sem uso há mais de idleTTL e devolve quantas saíram.
func (s *TokenBucketStore) Cleanup() int {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed
}

// StartJanitor roda Cleanup a cada cleanupEvery até o ctx cancelar.
func (s *TokenBucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
