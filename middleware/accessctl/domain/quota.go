package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Category é uma classe nomeada de operação limitada (ex: login, upload).
type Category string

const (
	CategoryLogin          Category = "login"
	CategoryRegister       Category = "register"
	CategoryAdminLogin     Category = "admin-login"
	CategorySupportTicket  Category = "support-ticket"
	CategorySupportMessage Category = "support-message"
	CategoryUpload         Category = "upload"
	CategoryProfileUpdate  Category = "profile-update"
	CategoryAPI            Category = "api"
)

// Categories lista as categorias conhecidas, na ordem usada por relatórios.
var Categories = []Category{
	CategoryLogin,
	CategoryRegister,
	CategoryAdminLogin,
	CategorySupportTicket,
	CategorySupportMessage,
	CategoryUpload,
	CategoryProfileUpdate,
	CategoryAPI,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// QuotaKey identifica um contador: categoria + identificador (IP ou user id).
// Existe no máximo uma entrada por QuotaKey.
type QuotaKey struct {
	Category   Category
	Identifier string
}

func NewQuotaKey(c Category, identifier string) QuotaKey {
	return QuotaKey{Category: c, Identifier: identifier}
}

// String devolve a forma "categoria:identificador" (ex: "login:203.0.113.4").
func (k QuotaKey) String() string {
	return string(k.Category) + ":" + k.Identifier
}

// ParseQuotaKey faz o caminho inverso de String. O identificador pode conter ':'
// (IPv6), por isso só o primeiro separador conta.
func ParseQuotaKey(s string) (QuotaKey, error) {
	cat, id, ok := strings.Cut(s, ":")
	if !ok || cat == "" {
		return QuotaKey{}, fmt.Errorf("malformed quota key %q", s)
	}
	return QuotaKey{Category: Category(cat), Identifier: id}, nil
}

// Limit é o limite estático de uma categoria.
type Limit struct {
	Max    int
	Window time.Duration
}

// QuotaEntry é o estado de um contador dentro da janela corrente.
type QuotaEntry struct {
	Count         int
	WindowResetAt time.Time
}

// Expired informa se a janela já acabou em now (now >= WindowResetAt).
func (e QuotaEntry) Expired(now time.Time) bool {
	return !now.Before(e.WindowResetAt)
}

// Verdict é o resultado de um check.
//
// ResetAt zero significa "não rastreado" (categoria desligada por toggle).
type Verdict struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter é o tempo até o fim da janela, a partir de now.
// Só faz sentido quando Allowed=false.
func (v Verdict) RetryAfter(now time.Time) time.Duration {
	if v.ResetAt.IsZero() || !v.ResetAt.After(now) {
		return 0
	}
	return v.ResetAt.Sub(now)
}

// QuotaStats agrupa as entradas armazenadas por categoria.
// Conta entradas cruas, inclusive as já expiradas que o sweep ainda não removeu.
type QuotaStats struct {
	Total      int
	ByCategory map[Category]int
}

// QuotaStore é a tabela chave -> contador com contagem em janela fixa.
//
// Check precisa ser atômico por chave: dois chamadores concorrentes nunca podem
// ver "count < max" e ambos passarem quando só restava uma vaga.
// Uma rejeição não altera a entrada (retentativas não estendem a janela).
type QuotaStore interface {
	Check(ctx context.Context, key QuotaKey, limit Limit, now time.Time) (Verdict, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context) (QuotaStats, error)
	ClearAll(ctx context.Context) (int, error)
	ClearCategory(ctx context.Context, c Category) (int, error)
}
