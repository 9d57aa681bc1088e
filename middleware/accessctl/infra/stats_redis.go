package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"access-gate/middleware/accessctl/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava decisões de cota em hashes do Redis:
//
//	<prefix>:total                    allowed|denied
//	<prefix>:category                 <categoria>:allowed|denied
//	<prefix>:minute:<YYYYMMDDhhmm>    <categoria>:allowed|denied   (com TTL)
//	<prefix>:route                    "<METHOD> <path>":allowed|denied
//	<prefix>:id:<categoria>:<id>      allowed|denied               (opt-in, com TTL)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl vale só para séries temporais e chaves por identificador.
	// total e category são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackIdentifiers bool
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackIdentifiers(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackIdentifiers = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "accessgate:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	catField := string(ev.Category) + ":" + outcome

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", outcome, 1)
	pipe.HIncrBy(ctx, s.prefix+":category", catField, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, catField, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+outcome, 1)
	}

	if s.trackIdentifiers {
		if id := strings.TrimSpace(ev.Identifier); id != "" {
			idKey := s.prefix + ":id:" + domain.NewQuotaKey(ev.Category, id).String()
			pipe.HIncrBy(ctx, idKey, outcome, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, idKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
