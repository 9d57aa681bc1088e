// Package admin expõe a superfície administrativa do controle de acesso:
// estatísticas e limpeza de cotas, toggles de política e banimentos.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
)

// Quotas é o recorte do application.QuotaService usado pelo admin.
type Quotas interface {
	Report(ctx context.Context) (application.QuotaReport, error)
	ClearAll(ctx context.Context) (int, error)
	ClearCategory(ctx context.Context, category string) (int, error)
}

type Toggler interface {
	Toggle(t domain.Toggle) (bool, error)
}

type BanApplier interface {
	Apply(ctx context.Context, actorID, targetID string, req application.BanRequest) (domain.Account, error)
}

type Options struct {
	Quotas Quotas
	Policy Toggler
	// Bans é opcional; sem ele PATCH /users/{id}/ban não é registrado.
	Bans     BanApplier
	Throttle application.Throttle
	Logger   *zap.Logger
}

type Handler struct {
	quotas   Quotas
	policy   Toggler
	bans     BanApplier
	throttle application.Throttle
	log      *zap.Logger
}

func New(opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		quotas:   opts.Quotas,
		policy:   opts.Policy,
		bans:     opts.Bans,
		throttle: opts.Throttle,
		log:      log,
	}
}

// Routes registra as rotas admin em r. A ordem é: sessão admin, throttle, handler.
// Só as rotas daqui passam pelo guard; o NotFound de r fica intacto.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Use(h.throttled)

		r.Get("/rate-limits", h.getRateLimits)
		r.Post("/rate-limits", h.postRateLimits)
		if h.bans != nil {
			r.Patch("/users/{id}/ban", h.patchBan)
		}
	})
}

// Router devolve um chi.Router pronto para ser montado (r.Mount).
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

// RequireAdmin exige um Principal com papel admin no contexto (ver accessctl.Session).
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := accessctl.PrincipalFrom(r.Context())
		if !ok || p.UserID == "" || !p.IsAdmin() {
			accessctl.WriteError(w, http.StatusUnauthorized, accessctl.MsgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) throttled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := accessctl.PrincipalFrom(r.Context())
		d := h.throttle.Decide("admin:" + p.UserID)
		if !d.Allowed {
			if d.RetryAfter > 0 {
				w.Header().Set("Retry-After", retryAfter(d.RetryAfter))
			}
			h.log.Warn("admin throttled", zap.String("admin_id", p.UserID))
			accessctl.WriteError(w, http.StatusTooManyRequests, accessctl.MsgTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeServiceError traduz a taxonomia de erros do domínio em status HTTP.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var actionErr *domain.AdminActionError
	switch {
	case errors.As(err, &actionErr):
		accessctl.WriteError(w, http.StatusBadRequest, actionErr.Msg)
	case errors.Is(err, domain.ErrInvalidAdminAction):
		accessctl.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccountNotFound):
		accessctl.WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, domain.ErrForbiddenTarget):
		accessctl.WriteError(w, http.StatusForbidden, "Cannot ban an administrator")
	case errors.Is(err, domain.ErrUnauthorized):
		accessctl.WriteError(w, http.StatusUnauthorized, accessctl.MsgUnauthorized)
	default:
		h.log.Error("admin request failed", zap.Error(err))
		accessctl.WriteError(w, http.StatusInternalServerError, accessctl.MsgInternal)
	}
}

func retryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
