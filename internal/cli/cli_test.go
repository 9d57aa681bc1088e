package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESSGATE_LOGGING_LEVEL", "error")
	t.Setenv("ACCESSGATE_BANS_BACKEND", "sql")
	t.Setenv("ACCESSGATE_BANS_DIALECT", "sqlite")
	t.Setenv("ACCESSGATE_BANS_DSN", "file:"+filepath.Join(t.TempDir(), "gate.db"))
}

func TestBanCommands(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "account", "add", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "account u1 created (role=user)")

	_, err = run(t, "account", "add", "boss", "--role", "admin")
	require.NoError(t, err)

	out, err = run(t, "ban", "show", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "status=not_banned")

	out, err = run(t, "ban", "set", "u1", "--duration", "24h", "--reason", "spam")
	require.NoError(t, err)
	assert.Contains(t, out, "status=active")
	assert.Contains(t, out, "reason=spam")

	out, err = run(t, "ban", "show", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "status=active")

	out, err = run(t, "ban", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "u1\trole=user")

	_, err = run(t, "ban", "set", "boss")
	assert.ErrorIs(t, err, domain.ErrForbiddenTarget)

	_, err = run(t, "ban", "set", "u1", "--duration", "1y")
	assert.ErrorIs(t, err, domain.ErrInvalidAdminAction)

	_, err = run(t, "ban", "show", "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	out, err = run(t, "ban", "lift", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "status=not_banned")
	assert.Contains(t, out, "reason=-")
}

func TestAccountAdd_InvalidID(t *testing.T) {
	useSQLite(t)

	_, err := run(t, "account", "add", "not-valid")
	assert.Error(t, err)
}

func TestBanCommands_NeedSQL(t *testing.T) {
	t.Setenv("ACCESSGATE_LOGGING_LEVEL", "error")

	_, err := run(t, "ban", "show", "u1")
	assert.ErrorIs(t, err, errNeedsSQL)
}

func TestQuotaCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ACCESSGATE_LOGGING_LEVEL", "error")
	t.Setenv("ACCESSGATE_QUOTA_BACKEND", "redis")
	t.Setenv("ACCESSGATE_REDIS_ADDR", mr.Addr())

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	store := infra.NewRedisQuotaStore(rdb)
	ctx := context.Background()
	now := time.Now()
	for _, k := range []domain.QuotaKey{
		domain.NewQuotaKey(domain.CategoryLogin, "1.1.1.1"),
		domain.NewQuotaKey(domain.CategoryUpload, "u1"),
	} {
		_, err := store.Check(ctx, k, domain.Limit{Max: 5, Window: time.Minute}, now)
		require.NoError(t, err)
	}

	out, err := run(t, "quota", "stats")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2,"byCategory":{"login":1,"upload":1}}`, out)

	out, err = run(t, "quota", "clear", "--category", "login")
	require.NoError(t, err)
	assert.Equal(t, "cleared 1\n", out)

	out, err = run(t, "quota", "clear")
	require.NoError(t, err)
	assert.Equal(t, "cleared 1\n", out)
}

func TestQuotaCommands_NeedRedis(t *testing.T) {
	t.Setenv("ACCESSGATE_LOGGING_LEVEL", "error")

	_, err := run(t, "quota", "stats")
	assert.ErrorIs(t, err, errNeedsRedis)
}

func TestServe_RequiresUpstream(t *testing.T) {
	t.Setenv("ACCESSGATE_LOGGING_LEVEL", "error")

	_, err := run(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.upstream_url")
}
