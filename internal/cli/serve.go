package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"access-gate/internal/server"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		Long: `Start the gateway in front of server.upstream_url.

SIGINT/SIGTERM drain in-flight requests for up to server.shutdown_timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateServe(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.log

	var rdb *redis.Client
	if cfg.Quota.Backend == "redis" || cfg.Stats.Enabled {
		c, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		rdb = c
	}

	reg := prometheus.NewRegistry()
	var promStats *infra.PrometheusStats
	if cfg.Metrics.Enabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		ps, err := infra.NewPrometheusStats(reg, cfg.Metrics.Namespace)
		if err != nil {
			return err
		}
		promStats = ps
	}

	// quotas
	var store domain.QuotaStore
	switch cfg.Quota.Backend {
	case "redis":
		store = infra.NewRedisQuotaStore(rdb)
	default:
		mem := infra.NewMemoryQuotaStore(infra.WithSweepEvery(cfg.Quota.SweepInterval))
		mem.StartJanitor(ctx, func(removed int) {
			if removed > 0 {
				log.Debug("expired quota windows swept", zap.Int("removed", removed))
			}
			if promStats != nil {
				promStats.ObserveSweep(removed)
			}
		})
		store = mem
	}

	var sinks infra.MultiStats
	if promStats != nil {
		sinks = append(sinks, promStats)
	}
	if cfg.Stats.Enabled {
		sinks = append(sinks, infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackIdentifiers(cfg.Stats.TrackIdentifiers),
		))
	}

	limits, err := cfg.Quota.Policy()
	if err != nil {
		return err
	}
	policy := application.NewPolicyControl(cfg.Quota.Settings())
	quotas := &application.QuotaService{Store: store, Policy: policy, Limits: limits}

	// bans
	repo, closeBans, err := openBans(ctx, cfg.Bans, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeBans() }()

	gate := application.BanGate{
		Repo: repo,
		OnLift: func(userID string) {
			if promStats != nil {
				promStats.ObserveLift()
			}
			log.Info("expired ban lifted", zap.String("user_id", userID))
		},
	}

	// admin
	buckets := infra.NewTokenBucketStore(cfg.Admin.PerMinute, cfg.Admin.Burst)
	buckets.StartJanitor(ctx)

	deps := server.Deps{
		Config:   cfg,
		Logger:   log,
		Quotas:   quotas,
		Policy:   policy,
		Bans:     gate,
		BanAdmin: application.BanService{Repo: repo},
		Throttle: application.Throttle{Store: buckets},
	}
	if len(sinks) > 0 {
		deps.Stats = sinks
	}
	if cfg.Concurrency.Max > 0 {
		pool := infra.NewChanPool(cfg.Concurrency.Max)
		deps.Pool = pool
		if cfg.Metrics.Enabled {
			err := infra.RegisterGauge(reg, cfg.Metrics.Namespace, "inflight_requests",
				"Requests holding a concurrency slot.", func() float64 { return float64(pool.InUse()) })
			if err != nil {
				return err
			}
		}
	}
	deps.OnShed = func() { log.Warn("request shed: no concurrency slot") }
	if promStats != nil {
		deps.OnShed = func() {
			promStats.ObserveShed()
			log.Warn("request shed: no concurrency slot")
		}
		deps.Gatherer = reg
		deps.ObserveBan = func(s domain.BanStatus) { promStats.ObserveBan(s.String()) }
	}

	srv, err := server.New(deps)
	if err != nil {
		return err
	}

	log.Info("gateway configured",
		zap.String("upstream", cfg.Server.UpstreamURL),
		zap.String("quota_backend", cfg.Quota.Backend),
		zap.String("bans_backend", cfg.Bans.Backend),
		zap.Bool("stats", cfg.Stats.Enabled),
		zap.Int("concurrency_max", cfg.Concurrency.Max),
		zap.Int("routes", len(cfg.Gateway.Routes)))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
