package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"access-gate/middleware/accessctl"
	"access-gate/middleware/accessctl/application"
	"access-gate/middleware/accessctl/domain"
	"access-gate/middleware/accessctl/infra"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	quotas  *application.QuotaService
	policy  *application.PolicyControl
	repo    *infra.MemoryBanRepository
	handler http.Handler
}

func newFixture(t *testing.T, throttle application.Throttle) *fixture {
	t.Helper()

	policy := application.NewPolicyControl(domain.Settings{RegistrationEnabled: true, LoginEnabled: true})
	quotas := &application.QuotaService{
		Store:  infra.NewMemoryQuotaStore(infra.WithSweepEvery(0)),
		Policy: policy,
		Limits: domain.DefaultQuotaPolicy(),
		Now:    func() time.Time { return testNow },
	}
	repo := infra.NewMemoryBanRepository(
		domain.Account{ID: "admin1", Role: domain.RoleAdmin},
		domain.Account{ID: "admin2", Role: domain.RoleAdmin},
		domain.Account{ID: "user1", Role: "user"},
	)

	h := New(Options{
		Quotas:   quotas,
		Policy:   policy,
		Bans:     application.BanService{Repo: repo, Now: func() time.Time { return testNow }},
		Throttle: throttle,
	})
	return &fixture{quotas: quotas, policy: policy, repo: repo, handler: h.Router()}
}

func (f *fixture) do(t *testing.T, method, path, body string, p *accessctl.Principal) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if p != nil {
		r = r.WithContext(accessctl.WithPrincipal(r.Context(), *p))
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

var asAdmin = &accessctl.Principal{UserID: "admin1", Role: domain.RoleAdmin}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t, application.Throttle{})

	w := f.do(t, http.MethodGet, "/rate-limits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/rate-limits", "", &accessctl.Principal{UserID: "user1", Role: "user"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_all"}`, &accessctl.Principal{UserID: "user1", Role: "user"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetRateLimits(t *testing.T) {
	f := newFixture(t, application.Throttle{})
	ctx := context.Background()

	for _, id := range []string{"1.1.1.1", "2.2.2.2"} {
		_, err := f.quotas.Check(ctx, domain.CategoryLogin, id)
		require.NoError(t, err)
	}
	_, err := f.quotas.Check(ctx, domain.CategoryUpload, "user1")
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/rate-limits", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"total": 3,
		"byCategory": {"login": 2, "upload": 1},
		"settings": {"registrationEnabled": true, "loginEnabled": true}
	}`, w.Body.String())
}

func TestGetRateLimits_Empty(t *testing.T) {
	f := newFixture(t, application.Throttle{})

	w := f.do(t, http.MethodGet, "/rate-limits", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":0,"byCategory":{},"settings":{"registrationEnabled":true,"loginEnabled":true}}`, w.Body.String())
}

func TestPostRateLimits_Clear(t *testing.T) {
	f := newFixture(t, application.Throttle{})
	ctx := context.Background()

	seed := func() {
		for _, id := range []string{"1.1.1.1", "2.2.2.2"} {
			_, err := f.quotas.Check(ctx, domain.CategoryLogin, id)
			require.NoError(t, err)
		}
		_, err := f.quotas.Check(ctx, domain.CategoryUpload, "user1")
		require.NoError(t, err)
	}
	seed()

	t.Run("clear_type without type", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_type"}`, asAdmin)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"rate limit type is required"}`, w.Body.String())
	})

	t.Run("clear_type", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_type","type":"login"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.EqualValues(t, 2, body["cleared"])
		assert.Equal(t, `Cleared 2 rate limits of type "login"`, body["message"])

		rep, err := f.quotas.Report(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"upload": 1}, rep.ByCategory)
	})

	t.Run("clear_type unknown category clears nothing", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_type","type":"nope"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["cleared"])
	})

	t.Run("clear_all twice", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_all"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Cleared 1 rate limits","cleared":1}`, w.Body.String())

		w = f.do(t, http.MethodPost, "/rate-limits", `{"action":"clear_all"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 0, decode(t, w)["cleared"])
	})
}

func TestPostRateLimits_Toggles(t *testing.T) {
	f := newFixture(t, application.Throttle{})

	w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"toggle_registration"}`, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Registration rate limit disabled","enabled":false}`, w.Body.String())
	assert.False(t, f.policy.Settings().RegistrationEnabled)

	// com o toggle desligado o register não consome cota
	for i := 0; i < 20; i++ {
		v, err := f.quotas.Check(context.Background(), domain.CategoryRegister, "9.9.9.9")
		require.NoError(t, err)
		require.True(t, v.Allowed)
	}

	w = f.do(t, http.MethodPost, "/rate-limits", `{"action":"toggle_registration"}`, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Registration rate limit enabled","enabled":true}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/rate-limits", `{"action":"toggle_login"}`, asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Login rate limit disabled","enabled":false}`, w.Body.String())
	assert.Equal(t, domain.Settings{RegistrationEnabled: true, LoginEnabled: false}, f.policy.Settings())
}

func TestPostRateLimits_BadInput(t *testing.T) {
	f := newFixture(t, application.Throttle{})

	w := f.do(t, http.MethodPost, "/rate-limits", `{"action":"explode"}`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Unknown action"}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/rate-limits", `{not json`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())
}

func TestAdminThrottle(t *testing.T) {
	store := infra.NewTokenBucketStore(1, 2)
	f := newFixture(t, application.Throttle{Store: store, RetryAfter: 30 * time.Second})

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodGet, "/rate-limits", "", asAdmin)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := f.do(t, http.MethodGet, "/rate-limits", "", asAdmin)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))

	// buckets são por admin
	w = f.do(t, http.MethodGet, "/rate-limits", "", &accessctl.Principal{UserID: "admin2", Role: domain.RoleAdmin})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPatchBan(t *testing.T) {
	f := newFixture(t, application.Throttle{})

	t.Run("temporary ban", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/users/user1/ban", `{"isBanned":true,"banDuration":"24h","banReason":"spam"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{
			"id": "user1",
			"role": "user",
			"isBanned": true,
			"banExpires": "2025-03-02T12:00:00Z",
			"banReason": "spam"
		}`, w.Body.String())

		acc, err := f.repo.Get(context.Background(), "user1")
		require.NoError(t, err)
		require.NotNil(t, acc.Ban.ExpiresAt)
		assert.Equal(t, testNow.Add(24*time.Hour), *acc.Ban.ExpiresAt)
	})

	t.Run("permanent ban without duration", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/users/user1/ban", `{"isBanned":true}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"user1","role":"user","isBanned":true,"banExpires":null,"banReason":null}`, w.Body.String())
	})

	t.Run("unban drops reason", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/users/user1/ban", `{"isBanned":false,"banReason":"ignored"}`, asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"user1","role":"user","isBanned":false,"banExpires":null,"banReason":null}`, w.Body.String())
	})

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		msg    string
	}{
		{"invalid id", "/users/user-1/ban", `{"isBanned":true}`, http.StatusBadRequest, "Invalid user id"},
		{"missing isBanned", "/users/user1/ban", `{"banDuration":"24h"}`, http.StatusBadRequest, "isBanned is required"},
		{"bad json", "/users/user1/ban", `[`, http.StatusBadRequest, "Invalid request body"},
		{"bad duration", "/users/user1/ban", `{"isBanned":true,"banDuration":"1y"}`, http.StatusBadRequest, `invalid ban duration "1y"`},
		{"reason too long", "/users/user1/ban", `{"isBanned":true,"banReason":"` + strings.Repeat("x", 501) + `"}`, http.StatusBadRequest, "ban reason is too long"},
		{"unknown user", "/users/ghost/ban", `{"isBanned":true}`, http.StatusNotFound, "User not found"},
		{"self ban", "/users/admin1/ban", `{"isBanned":true}`, http.StatusBadRequest, "cannot ban yourself"},
		{"admin target", "/users/admin2/ban", `{"isBanned":true}`, http.StatusForbidden, "Cannot ban an administrator"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, http.MethodPatch, tc.path, tc.body, asAdmin)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.msg, decode(t, w)["error"])
		})
	}
}

func TestPatchBan_NotRegisteredWithoutBans(t *testing.T) {
	h := New(Options{
		Quotas: &application.QuotaService{Store: infra.NewMemoryQuotaStore(), Limits: domain.DefaultQuotaPolicy()},
		Policy: application.NewPolicyControl(domain.Settings{}),
	}).Router()

	r := httptest.NewRequest(http.MethodPatch, "/users/user1/ban", strings.NewReader(`{"isBanned":true}`))
	r = r.WithContext(accessctl.WithPrincipal(r.Context(), *asAdmin))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
