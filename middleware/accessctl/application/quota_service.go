package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// QuotaService concentra a regra de cota: toggle, limite da categoria e store.
//
// Não sabe nada de HTTP; devolve um Verdict e o adapter traduz para 429.
type QuotaService struct {
	Store  domain.QuotaStore
	Policy *PolicyControl
	Limits domain.QuotaPolicy
	Now    func() time.Time
}

// QuotaReport é o que o admin vê em GET /rate-limits.
//
// Settings só existe quando o serviço tem os toggles do processo; fora do
// gateway (CLI) fica nil e some do JSON.
type QuotaReport struct {
	Total      int              `json:"total"`
	ByCategory map[string]int   `json:"byCategory"`
	Settings   *domain.Settings `json:"settings,omitempty"`
}

var errNoQuotaStore = errors.New("quota store is not configured")

func (s *QuotaService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Check consome uma unidade de cota de identifier na categoria c.
//
// Com o toggle da categoria desligado devolve allowed=true, remaining=max e
// ResetAt zero sem tocar no store.
func (s *QuotaService) Check(ctx context.Context, c domain.Category, identifier string) (domain.Verdict, error) {
	limit, err := s.Limits.Limit(c)
	if err != nil {
		return domain.Verdict{}, err
	}
	if s.Policy != nil && !s.Policy.Enforced(c) {
		return domain.Verdict{Allowed: true, Remaining: limit.Max}, nil
	}
	if s.Store == nil {
		return domain.Verdict{}, errNoQuotaStore
	}

	v, err := s.Store.Check(ctx, domain.NewQuotaKey(c, identifier), limit, s.now())
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("quota check %s: %w", c, err)
	}
	return v, nil
}

// Enforce é Check com a rejeição convertida em *domain.QuotaExceededError.
func (s *QuotaService) Enforce(ctx context.Context, c domain.Category, identifier string) (domain.Verdict, error) {
	v, err := s.Check(ctx, c, identifier)
	if err != nil {
		return v, err
	}
	if !v.Allowed {
		return v, &domain.QuotaExceededError{Key: domain.NewQuotaKey(c, identifier), ResetAt: v.ResetAt}
	}
	return v, nil
}

func (s *QuotaService) Report(ctx context.Context) (QuotaReport, error) {
	st, err := s.Store.Stats(ctx)
	if err != nil {
		return QuotaReport{}, fmt.Errorf("quota stats: %w", err)
	}
	rep := QuotaReport{
		Total:      st.Total,
		ByCategory: make(map[string]int, len(st.ByCategory)),
	}
	for c, n := range st.ByCategory {
		rep.ByCategory[string(c)] = n
	}
	if s.Policy != nil {
		settings := s.Policy.Settings()
		rep.Settings = &settings
	}
	return rep, nil
}

func (s *QuotaService) ClearAll(ctx context.Context) (int, error) {
	n, err := s.Store.ClearAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear all quotas: %w", err)
	}
	return n, nil
}

// ClearCategory aceita qualquer nome: categoria desconhecida apenas remove 0.
func (s *QuotaService) ClearCategory(ctx context.Context, category string) (int, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return 0, domain.InvalidAdminAction("rate limit type is required")
	}
	n, err := s.Store.ClearCategory(ctx, domain.Category(category))
	if err != nil {
		return 0, fmt.Errorf("clear quotas %s: %w", category, err)
	}
	return n, nil
}
