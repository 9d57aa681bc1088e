package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"access-gate/middleware/accessctl/domain"
)

// Reconcile decide o estado de banimento em now, sem I/O.
//
// Quando um banimento temporário já expirou devolve Expired e o registro a
// ser gravado de volta; nos demais casos writeBack é nil.
func Reconcile(rec *domain.BanRecord, now time.Time) (domain.BanDecision, *domain.BanRecord) {
	if rec == nil || !rec.IsBanned {
		return domain.BanDecision{Status: domain.NotBanned}, nil
	}
	if rec.ExpiresAt == nil || rec.ExpiresAt.After(now) {
		return domain.BanDecision{
			Status:    domain.Active,
			Reason:    rec.Reason,
			ExpiresAt: rec.ExpiresAt,
		}, nil
	}
	lifted := domain.Lifted()
	return domain.BanDecision{Status: domain.Expired}, &lifted
}

// BanGate consulta o repositório e reconcilia expirações na leitura.
//
// Quem chama decide se admins passam direto; o gate não olha o papel.
type BanGate struct {
	Repo domain.BanRepository
	Now  func() time.Time
	// OnLift é chamado depois que uma expiração foi gravada. Opcional.
	OnLift func(userID string)
}

func (g BanGate) Check(ctx context.Context, userID string) (domain.BanDecision, error) {
	acc, err := g.Repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.BanDecision{Status: domain.NotBanned}, nil
	}
	if err != nil {
		return domain.BanDecision{}, fmt.Errorf("load ban state %s: %w", userID, err)
	}

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}

	dec, writeBack := Reconcile(&acc.Ban, now)
	if writeBack == nil {
		return dec, nil
	}

	lifted, err := g.Repo.LiftExpired(ctx, userID, now)
	if err != nil {
		return domain.BanDecision{}, fmt.Errorf("lift expired ban %s: %w", userID, err)
	}
	if lifted {
		if g.OnLift != nil {
			g.OnLift(userID)
		}
		return domain.BanDecision{Status: domain.NotBanned}, nil
	}

	// Outra escrita venceu entre a leitura e o UPDATE: vale o estado atual.
	return g.recheck(ctx, userID, now)
}

func (g BanGate) recheck(ctx context.Context, userID string, now time.Time) (domain.BanDecision, error) {
	acc, err := g.Repo.Get(ctx, userID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.BanDecision{Status: domain.NotBanned}, nil
	}
	if err != nil {
		return domain.BanDecision{}, fmt.Errorf("reload ban state %s: %w", userID, err)
	}
	dec, _ := Reconcile(&acc.Ban, now)
	if dec.Status == domain.Expired {
		return domain.BanDecision{Status: domain.NotBanned}, nil
	}
	return dec, nil
}
