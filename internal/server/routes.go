package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"access-gate/internal/config"
	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/admin"
	"access-gate/middleware/accessctl/domain"
)

func (s *Server) registerRoutes(d Deps, upstream http.Handler) {
	cfg := d.Config

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		accessctl.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	capped := accessctl.ConcurrencyMiddleware(accessctl.ConcurrencyOptions{
		Max:            cfg.Concurrency.Max,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.Concurrency.Timeout,
		Pool:           d.Pool,
		OnShed:         d.OnShed,
	})
	session := accessctl.Session(accessctl.HeaderSession(cfg.Identity.UserHeader, cfg.Identity.RoleHeader))

	// Tudo que não casa com uma rota protegida vai direto para o upstream.
	// Precisa vir antes do Mount para o subrouter admin herdar.
	fallback := capped(upstream)
	s.router.NotFound(fallback.ServeHTTP)
	s.router.MethodNotAllowed(fallback.ServeHTTP)

	s.router.Group(func(r chi.Router) {
		r.Use(capped)
		r.Use(session)

		for _, rc := range cfg.Gateway.Routes {
			r.With(s.routeChain(d, rc)...).Method(strings.ToUpper(rc.Method), rc.Path, upstream)
		}
	})

	adm := admin.New(admin.Options{
		Quotas:   d.Quotas,
		Policy:   d.Policy,
		Bans:     d.BanAdmin,
		Throttle: d.Throttle,
		Logger:   s.log.Named("admin"),
	})
	// Sem capped aqui: o fallback herdado pelo subrouter já adquire a vaga.
	s.router.With(session).Mount(cfg.Admin.Prefix, adm.Router())
}

// routeChain monta quota → ban para uma rota configurada.
func (s *Server) routeChain(d Deps, rc config.RouteConfig) []func(http.Handler) http.Handler {
	var chain []func(http.Handler) http.Handler
	if rc.Category != "" {
		chain = append(chain, accessctl.QuotaMiddleware(accessctl.QuotaOptions{
			Quotas:              d.Quotas,
			Category:            domain.Category(rc.Category),
			Identity:            accessctl.IdentityKind(rc.Identity),
			Stats:               d.Stats,
			Logger:              s.log,
			Now:                 d.Quotas.Now,
			AddRateLimitHeaders: d.Config.Quota.RateLimitHeaders,
		}))
	}
	if rc.BanCheck {
		chain = append(chain, accessctl.BanMiddleware(accessctl.BanOptions{
			Bans:         d.Bans,
			ExemptAdmins: rc.ExemptAdmin,
			Logger:       s.log,
			Observe:      d.ObserveBan,
		}))
	}
	return chain
}
