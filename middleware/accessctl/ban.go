package accessctl

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"access-gate/middleware/accessctl/domain"
)

// BanChecker é o que o middleware precisa do application.BanGate.
type BanChecker interface {
	Check(ctx context.Context, userID string) (domain.BanDecision, error)
}

type BanOptions struct {
	Bans BanChecker
	// ExemptAdmins deixa sessões admin passarem sem consultar o gate.
	ExemptAdmins bool
	Logger       *zap.Logger
	// Observe (opcional) recebe o status de cada decisão, para métricas.
	Observe func(status domain.BanStatus)
}

// BannedBody é a resposta 403 de uma conta suspensa.
type BannedBody struct {
	Error     string     `json:"error"`
	Banned    bool       `json:"banned"`
	Reason    *string    `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// BanMiddleware nega (403) requests de contas com banimento ativo.
// Exige sessão: sem Principal responde 401.
func BanMiddleware(opts BanOptions) func(next http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok || p.UserID == "" {
				WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
				return
			}
			if opts.ExemptAdmins && p.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			dec, err := opts.Bans.Check(r.Context(), p.UserID)
			if err != nil {
				log.Error("ban check failed", zap.String("user_id", p.UserID), zap.Error(err))
				WriteError(w, http.StatusInternalServerError, MsgInternal)
				return
			}
			if opts.Observe != nil {
				opts.Observe(dec.Status)
			}

			if dec.Denied() {
				WriteJSON(w, http.StatusForbidden, BannedBody{
					Error:     MsgSuspended,
					Banned:    true,
					Reason:    dec.Reason,
					ExpiresAt: dec.ExpiresAt,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
