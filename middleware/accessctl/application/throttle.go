package application

import (
	"time"

	"access-gate/middleware/accessctl/domain"
)

// Throttle protege superfícies caras (admin) com um limiter por chave.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Throttle struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (t Throttle) Decide(key string) domain.Decision {
	if t.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if t.RetryAfter <= 0 {
		t.RetryAfter = 1 * time.Second
	}

	lim := t.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: t.RetryAfter}
}
