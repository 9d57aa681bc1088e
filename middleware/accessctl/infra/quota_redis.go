package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"access-gate/middleware/accessctl/domain"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript faz o check inteiro no servidor: ler, resetar ou
// incrementar acontece numa única operação atômica por chave.
//
// KEYS[1] = hash da chave; ARGV = now_ms, max, window_ms.
// Retorno: {allowed(0|1), remaining, reset_ms}.
var fixedWindowScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'count', 'reset')
local now = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local win = tonumber(ARGV[3])
local count = tonumber(cur[1])
local reset = tonumber(cur[2])

if (not count) or (not reset) or now >= reset then
  reset = now + win
  redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
  redis.call('PEXPIREAT', KEYS[1], reset)
  return {1, max - 1, reset}
end

if count >= max then
  return {0, 0, reset}
end

count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, max - count, reset}
`)

// RedisQuotaStore é o backend compartilhado: várias instâncias do gateway
// enxergam os mesmos contadores.
//
// Cada chave vira um hash {count, reset} com expiração no fim da janela, então
// SweepExpired não tem trabalho. Os clears apagam chave a chave e não são
// atômicos em relação ao keyspace inteiro.
type RedisQuotaStore struct {
	rdb       redis.UniversalClient
	prefix    string
	scanCount int64
}

var _ domain.QuotaStore = (*RedisQuotaStore)(nil)

type RedisQuotaOption func(*RedisQuotaStore)

func WithQuotaPrefix(prefix string) RedisQuotaOption {
	return func(s *RedisQuotaStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithScanCount(n int64) RedisQuotaOption {
	return func(s *RedisQuotaStore) { s.scanCount = n }
}

func NewRedisQuotaStore(rdb redis.UniversalClient, opts ...RedisQuotaOption) *RedisQuotaStore {
	s := &RedisQuotaStore{
		rdb:       rdb,
		prefix:    "accessgate:quota",
		scanCount: 200,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisQuotaStore) redisKey(k domain.QuotaKey) string {
	return s.prefix + ":" + k.String()
}

func (s *RedisQuotaStore) Check(ctx context.Context, key domain.QuotaKey, limit domain.Limit, now time.Time) (domain.Verdict, error) {
	res, err := fixedWindowScript.Run(ctx, s.rdb,
		[]string{s.redisKey(key)},
		now.UnixMilli(), limit.Max, limit.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("redis quota check: %w", err)
	}
	if len(res) != 3 {
		return domain.Verdict{}, fmt.Errorf("redis quota check: unexpected reply %v", res)
	}

	return domain.Verdict{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetAt:   time.UnixMilli(res[2]),
	}, nil
}

// SweepExpired não faz nada: o Redis expira as chaves no fim da janela.
func (s *RedisQuotaStore) SweepExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisQuotaStore) Stats(ctx context.Context) (domain.QuotaStats, error) {
	st := domain.QuotaStats{ByCategory: make(map[domain.Category]int)}
	err := s.scan(ctx, s.prefix+":*", func(keys []string) error {
		for _, rk := range keys {
			k, err := domain.ParseQuotaKey(strings.TrimPrefix(rk, s.prefix+":"))
			if err != nil {
				continue
			}
			st.Total++
			st.ByCategory[k.Category]++
		}
		return nil
	})
	if err != nil {
		return domain.QuotaStats{}, fmt.Errorf("redis quota stats: %w", err)
	}
	return st, nil
}

func (s *RedisQuotaStore) ClearAll(ctx context.Context) (int, error) {
	n, err := s.deleteMatching(ctx, s.prefix+":*")
	if err != nil {
		return n, fmt.Errorf("redis quota clear: %w", err)
	}
	return n, nil
}

func (s *RedisQuotaStore) ClearCategory(ctx context.Context, c domain.Category) (int, error) {
	n, err := s.deleteMatching(ctx, s.prefix+":"+globEscape(string(c))+":*")
	if err != nil {
		return n, fmt.Errorf("redis quota clear %s: %w", c, err)
	}
	return n, nil
}

var globMeta = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// globEscape faz o nome da categoria casar literalmente no MATCH do SCAN.
func globEscape(s string) string { return globMeta.Replace(s) }

func (s *RedisQuotaStore) deleteMatching(ctx context.Context, pattern string) (int, error) {
	total := 0
	err := s.scan(ctx, pattern, func(keys []string) error {
		n, err := s.rdb.Del(ctx, keys...).Result()
		total += int(n)
		return err
	})
	return total, err
}

// scan percorre as chaves em lotes de até scanCount.
func (s *RedisQuotaStore) scan(ctx context.Context, pattern string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
