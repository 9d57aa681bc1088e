package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"access-gate/internal/config"
	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

// accountStore é o repositório de banimentos que também cadastra contas.
type accountStore interface {
	domain.BanRepository
	CreateAccount(ctx context.Context, id, role string) error
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// openBans abre o backend configurado. close nunca é nil.
func openBans(ctx context.Context, cfg config.BansConfig, log *zap.Logger) (accountStore, func() error, error) {
	if cfg.Backend != "sql" {
		log.Warn("bans backend is in-memory; ban state is lost on restart")
		return infra.NewMemoryBanRepository(), func() error { return nil }, nil
	}

	dialect := infra.Dialect(cfg.Dialect)
	db, err := infra.OpenDB(ctx, dialect, cfg.DSN, infra.DBOptions{})
	if err != nil {
		return nil, nil, err
	}

	repo, err := infra.NewSQLBanRepository(db, dialect, infra.WithTable(cfg.Table))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	log.Info("bans backend ready", zap.String("dialect", cfg.Dialect), zap.String("table", cfg.Table))
	return repo, db.Close, nil
}

var errNeedsSQL = errors.New("this command needs a shared ban store: set bans.backend=sql")

var errNeedsRedis = errors.New("this command needs a shared quota store: set quota.backend=redis")
