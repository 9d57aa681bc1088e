package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/admin"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

func main() {
	// Exemplo: controle de acesso embutido direto no webserver (sem proxy).
	log, _ := zap.NewDevelopment()
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryQuotaStore()
	store.StartJanitor(ctx, nil)

	policy := application.NewPolicyControl(domain.Settings{RegistrationEnabled: true, LoginEnabled: true})
	quotas := &application.QuotaService{Store: store, Policy: policy, Limits: domain.DefaultQuotaPolicy()}

	// contas de demonstração: curl -H 'X-User-Id: alice' ...
	repo := infra.NewMemoryBanRepository(
		domain.Account{ID: "alice", Role: "user"},
		domain.Account{ID: "root", Role: domain.RoleAdmin},
	)
	gate := application.BanGate{Repo: repo}

	stats := infra.NewMemoryStatsStore()

	buckets := infra.NewTokenBucketStore(10, 5)
	buckets.StartJanitor(ctx)

	ok := func(w http.ResponseWriter, r *http.Request) {
		accessctl.WriteJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}
	login := accessctl.QuotaMiddleware(accessctl.QuotaOptions{
		Quotas: quotas, Category: domain.CategoryLogin, Stats: stats, Logger: log, AddRateLimitHeaders: true,
	})
	upload := accessctl.QuotaMiddleware(accessctl.QuotaOptions{
		Quotas: quotas, Category: domain.CategoryUpload, Identity: accessctl.IdentityUser, Stats: stats, Logger: log,
	})
	notBanned := accessctl.BanMiddleware(accessctl.BanOptions{Bans: gate, ExemptAdmins: true, Logger: log})

	adm := admin.New(admin.Options{
		Quotas:   quotas,
		Policy:   policy,
		Bans:     application.BanService{Repo: repo},
		Throttle: application.Throttle{Store: buckets},
		Logger:   log,
	})

	mux := http.NewServeMux()
	mux.Handle("POST /login", login(http.HandlerFunc(ok)))
	mux.Handle("POST /upload", upload(notBanned(http.HandlerFunc(ok))))
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		accessctl.WriteJSON(w, http.StatusOK, map[string]any{
			"total":      stats.Total(),
			"byCategory": stats.ByCategory(),
			"byRoute":    stats.ByRoute(),
		})
	})
	mux.Handle("/admin/", http.StripPrefix("/admin", adm.Router()))

	h := http.Handler(mux)
	h = accessctl.Session(accessctl.HeaderSession("X-User-Id", "X-User-Role"))(h)
	h = accessctl.ConcurrencyMiddleware(accessctl.ConcurrencyOptions{Max: 50})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("example server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
