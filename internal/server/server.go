// Package server monta o gateway HTTP: request id, access log, recovery,
// tabela de rotas protegidas, superfície admin e proxy para o upstream.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"access-gate/internal/config"
	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/admin"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
)

// Deps são os colaboradores já construídos (ver internal/cli).
type Deps struct {
	Config config.Config
	Logger *zap.Logger

	Quotas *application.QuotaService
	Policy *application.PolicyControl
	Bans   accessctl.BanChecker
	// BanAdmin é opcional; sem ele a rota de banimento admin não existe.
	BanAdmin admin.BanApplier
	Stats    domain.StatsStore
	Throttle application.Throttle
	// Pool substitui o semáforo criado a partir de Config.Concurrency.Max.
	Pool   domain.SlotPool
	OnShed func()

	// Gatherer serve /metrics; nil desliga o endpoint.
	Gatherer   prometheus.Gatherer
	ObserveBan func(domain.BanStatus)

	// Upstream substitui o reverse proxy para Config.Server.UpstreamURL (testes).
	Upstream http.Handler
}

type Server struct {
	router chi.Router
	server *http.Server
	log    *zap.Logger
	addr   string
}

func New(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Quotas == nil {
		return nil, errors.New("server: quota service is required")
	}
	if d.Bans == nil {
		return nil, errors.New("server: ban checker is required")
	}
	if d.Policy == nil {
		return nil, errors.New("server: policy control is required")
	}

	upstream := d.Upstream
	if upstream == nil {
		p, err := NewProxy(d.Config.Server.UpstreamURL, d.Logger)
		if err != nil {
			return nil, err
		}
		upstream = p
	}

	r := chi.NewRouter()

	// RequestID → access log → recovery
	r.Use(RequestID)
	r.Use(AccessLog(d.Logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		router: r,
		log:    d.Logger,
		addr:   d.Config.Server.ListenAddr,
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	s.registerRoutes(d, upstream)
	return s, nil
}

// Start bloqueia até o servidor parar. http.ErrServerClosed não é erro.
func (s *Server) Start() error {
	s.log.Info("gateway listening", zap.String("addr", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown pode ser chamado antes de Start; Start então retorna de imediato.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down gateway")
	return s.server.Shutdown(ctx)
}

// Handler expõe o router para testes.
func (s *Server) Handler() http.Handler {
	return s.router
}
