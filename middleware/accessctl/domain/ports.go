package domain

import (
	"context"
	"time"
)

// SlotPool representa um recurso com capacidade finita (requests em voo no gateway).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// O release devolvido deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}

// Limiter decide se uma ação é permitida agora (token bucket do throttle admin).
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um Limiter por chave (ex: id do admin).
type LimiterStore interface {
	Get(key string) Limiter
}

// Decision é a resposta do throttle: permitido ou bloqueado com Retry-After sugerido.
type Decision struct {
	Allowed bool
	// RetryAfter é o valor do header Retry-After quando bloqueado. 0 = sem recomendação.
	RetryAfter time.Duration
}
