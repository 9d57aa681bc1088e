package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de cota.
//
// Method/Path são strings genéricas, sem acoplar a HTTP.
//
// Observação: Identifier tem cardinalidade alta (IP/usuário). Sinks que o
// persistem por chave devem ter TTL ou opt-in.
type StatsEvent struct {
	Category   Category
	Identifier string
	Allowed    bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas.
//
// Best-effort: o middleware registra o erro e segue, nunca derruba a request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
