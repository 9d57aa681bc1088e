package application

import (
	"context"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"access-gate/middleware/accessctl/domain"
)

const MaxBanReasonLength = 500

var accountIDPattern = regexp.MustCompile(`(?i)^[a-z0-9]+$`)

// BanDurations são as durações aceitas pelo admin. 0 = permanente.
var BanDurations = map[string]time.Duration{
	"24h":       24 * time.Hour,
	"3d":        3 * 24 * time.Hour,
	"7d":        7 * 24 * time.Hour,
	"permanent": 0,
}

type BanRequest struct {
	Banned   bool
	Duration string
	Reason   string
}

// BanService aplica e remove banimentos a pedido de um admin.
type BanService struct {
	Repo domain.BanRepository
	Now  func() time.Time
}

func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id)
}

// Apply grava o banimento de targetID pedido por actorID.
//
// Regras: id alfanumérico, duração conhecida, motivo até 500 caracteres,
// ninguém se bane e admins nunca são banidos.
func (s BanService) Apply(ctx context.Context, actorID, targetID string, req BanRequest) (domain.Account, error) {
	if !ValidAccountID(targetID) {
		return domain.Account{}, domain.InvalidAdminAction("invalid account id")
	}
	ttl, ok := BanDurations[req.Duration]
	if req.Duration != "" && !ok {
		return domain.Account{}, domain.InvalidAdminAction("invalid ban duration %q", req.Duration)
	}
	if utf8.RuneCountInString(req.Reason) > MaxBanReasonLength {
		return domain.Account{}, domain.InvalidAdminAction("ban reason is too long")
	}

	acc, err := s.Repo.Get(ctx, targetID)
	if err != nil {
		return domain.Account{}, err
	}
	if targetID == actorID {
		return domain.Account{}, domain.InvalidAdminAction("cannot ban yourself")
	}
	if acc.IsAdmin() {
		return domain.Account{}, fmt.Errorf("%w: cannot ban an administrator", domain.ErrForbiddenTarget)
	}

	rec := domain.BanRecord{IsBanned: req.Banned}
	if req.Banned {
		if ttl > 0 {
			now := time.Now()
			if s.Now != nil {
				now = s.Now()
			}
			exp := now.Add(ttl)
			rec.ExpiresAt = &exp
		}
		if req.Reason != "" {
			reason := req.Reason
			rec.Reason = &reason
		}
	}

	if err := s.Repo.SaveBan(ctx, targetID, rec); err != nil {
		return domain.Account{}, fmt.Errorf("save ban %s: %w", targetID, err)
	}
	acc.Ban = rec
	return acc, nil
}
