package application

import (
	"testing"
	"time"

	"access-gate/middleware/accessctl/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeLimiterStore struct {
	lim  domain.Limiter
	keys []string
}

func (s *fakeLimiterStore) Get(key string) domain.Limiter {
	s.keys = append(s.keys, key)
	return s.lim
}

func TestThrottle_Decide_AllowsWhenNoStore(t *testing.T) {
	dec := Throttle{}.Decide("admin1")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestThrottle_Decide_UsesKey(t *testing.T) {
	store := &fakeLimiterStore{lim: fakeLimiter{allow: true}}
	dec := Throttle{Store: store, RetryAfter: 5 * time.Second}.Decide("admin1")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if len(store.keys) != 1 || store.keys[0] != "admin1" {
		t.Fatalf("expected store lookup by admin id, got %v", store.keys)
	}
}

func TestThrottle_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	dec := Throttle{Store: &fakeLimiterStore{lim: fakeLimiter{allow: false}}}.Decide("admin1")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestThrottle_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	dec := Throttle{Store: &fakeLimiterStore{lim: fakeLimiter{allow: false}}, RetryAfter: 6 * time.Second}.Decide("admin1")
	if dec.Allowed || dec.RetryAfter != 6*time.Second {
		t.Fatalf("expected blocked with RetryAfter=6s, got %+v", dec)
	}
}
