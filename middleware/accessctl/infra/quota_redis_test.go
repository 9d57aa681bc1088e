package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access-gate/middleware/accessctl/domain"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisQuotaStore_FixedWindowScenario(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisQuotaStore(rdb, WithQuotaPrefix("test:quota"))
	ctx := context.Background()
	key := domain.NewQuotaKey(domain.CategoryLogin, "1.2.3.4")
	t0 := time.Now().Truncate(time.Millisecond)

	for i, want := range []int{2, 1, 0} {
		v, err := s.Check(ctx, key, loginLimit, t0)
		require.NoError(t, err)
		assert.True(t, v.Allowed, "call %d", i+1)
		assert.Equal(t, want, v.Remaining, "call %d", i+1)
		assert.True(t, t0.Add(60*time.Second).Equal(v.ResetAt))
	}

	v, err := s.Check(ctx, key, loginLimit, t0.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.Zero(t, v.Remaining)
	assert.True(t, t0.Add(60*time.Second).Equal(v.ResetAt))

	later := t0.Add(61 * time.Second)
	v, err = s.Check(ctx, key, loginLimit, later)
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.Equal(t, 2, v.Remaining)
	assert.True(t, later.Add(60*time.Second).Equal(v.ResetAt))
}

func TestRedisQuotaStore_KeyExpiresWithWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisQuotaStore(rdb)
	ctx := context.Background()

	_, err := s.Check(ctx, domain.NewQuotaKey(domain.CategoryUpload, "u1"), domain.Limit{Max: 10, Window: time.Minute}, time.Now())
	require.NoError(t, err)
	assert.True(t, mr.Exists("accessgate:quota:upload:u1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("accessgate:quota:upload:u1"))

	n, err := s.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQuotaStore_StatsAndClears(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisQuotaStore(rdb, WithScanCount(1))
	ctx := context.Background()
	now := time.Now()

	for _, k := range []domain.QuotaKey{
		domain.NewQuotaKey(domain.CategoryLogin, "a"),
		domain.NewQuotaKey(domain.CategoryLogin, "b"),
		domain.NewQuotaKey(domain.CategoryRegister, "c"),
		domain.NewQuotaKey(domain.CategoryUpload, "2001:db8::1"),
	} {
		_, err := s.Check(ctx, k, loginLimit, now)
		require.NoError(t, err)
	}

	// chave alheia ao prefixo não entra na conta
	require.NoError(t, rdb.Set(ctx, "other:key", "1", 0).Err())

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, map[domain.Category]int{
		domain.CategoryLogin:    2,
		domain.CategoryRegister: 1,
		domain.CategoryUpload:   1,
	}, st.ByCategory)

	n, err := s.ClearCategory(ctx, domain.CategoryLogin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ClearAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, int64(1), rdb.Exists(ctx, "other:key").Val())
}

func TestRedisQuotaStore_ClearCategoryMatchesLiterally(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisQuotaStore(rdb)
	ctx := context.Background()
	now := time.Now()

	for _, k := range []domain.QuotaKey{
		domain.NewQuotaKey(domain.CategoryLogin, "a"),
		domain.NewQuotaKey(domain.CategoryAdminLogin, "b"),
		domain.NewQuotaKey(domain.CategoryRegister, "c"),
	} {
		_, err := s.Check(ctx, k, loginLimit, now)
		require.NoError(t, err)
	}

	for _, c := range []domain.Category{"*", "log*", "?ogin", "[lr]*", `login\`, "*login"} {
		n, err := s.ClearCategory(ctx, c)
		require.NoError(t, err)
		assert.Zero(t, n, "category %q", c)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, "login", globEscape("login"))
	assert.Equal(t, `\*\?\[a\]\\`, globEscape(`*?[a]\`))
}

func TestRedisQuotaStore_ErrorsWhenRedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisQuotaStore(rdb)
	mr.Close()

	_, err := s.Check(context.Background(), domain.NewQuotaKey(domain.CategoryLogin, "x"), loginLimit, time.Now())
	assert.Error(t, err)
}
