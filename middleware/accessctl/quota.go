package accessctl

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"access-gate/middleware/accessctl/domain"
)

// QuotaChecker é o que o middleware precisa do application.QuotaService.
type QuotaChecker interface {
	Check(ctx context.Context, c domain.Category, identifier string) (domain.Verdict, error)
}

type QuotaOptions struct {
	Quotas   QuotaChecker
	Category domain.Category
	Identity IdentityKind
	Stats    domain.StatsStore
	Logger   *zap.Logger
	Now      func() time.Time
	// AddRateLimitHeaders expõe X-RateLimit-Remaining/Reset nas respostas.
	AddRateLimitHeaders bool
}

// QuotaMiddleware consome uma unidade da cota da categoria antes do handler.
//
// Rejeição: 429 com Retry-After = ceil(resetAt - now) em segundos.
// IdentityUser sem sessão: 401. Erro do store: 500.
func QuotaMiddleware(opts QuotaOptions) func(next http.Handler) http.Handler {
	if opts.Identity == "" {
		opts.Identity = IdentityIP
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := Identify(r, opts.Identity)
			if !ok {
				WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
				return
			}

			v, err := opts.Quotas.Check(r.Context(), opts.Category, id)
			if err != nil {
				log.Error("quota check failed",
					zap.String("category", string(opts.Category)),
					zap.Error(err))
				WriteError(w, http.StatusInternalServerError, MsgInternal)
				return
			}

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Category:   opts.Category,
					Identifier: id,
					Allowed:    v.Allowed,
					Method:     r.Method,
					Path:       r.URL.Path,
					At:         opts.Now(),
				}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					log.Warn("quota stats record failed", zap.Error(err))
				}
			}

			if opts.AddRateLimitHeaders && !v.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Remaining", formatInt(v.Remaining))
				w.Header().Set("X-RateLimit-Reset", formatInt64(v.ResetAt.Unix()))
			}

			if !v.Allowed {
				now := opts.Now()
				secs := retryAfterSeconds(v.RetryAfter(now))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", formatInt(secs))
				log.Info("quota exceeded",
					zap.String("key", domain.NewQuotaKey(opts.Category, id).String()),
					zap.Time("reset_at", v.ResetAt))
				WriteError(w, http.StatusTooManyRequests, MsgTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
