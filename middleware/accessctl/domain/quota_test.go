package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaKey_StringAndParse(t *testing.T) {
	k := NewQuotaKey(CategoryLogin, "203.0.113.4")
	assert.Equal(t, "login:203.0.113.4", k.String())

	parsed, err := ParseQuotaKey("upload:2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, CategoryUpload, parsed.Category)
	assert.Equal(t, "2001:db8::1", parsed.Identifier)

	_, err = ParseQuotaKey("no-separator")
	assert.Error(t, err)
}

func TestQuotaEntry_ExpiredAtBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	e := QuotaEntry{Count: 1, WindowResetAt: now}

	assert.True(t, e.Expired(now), "now == resetAt counts as expired")
	assert.False(t, e.Expired(now.Add(-time.Millisecond)))
}

func TestVerdict_RetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	v := Verdict{ResetAt: now.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, v.RetryAfter(now))

	assert.Zero(t, Verdict{}.RetryAfter(now))
	assert.Zero(t, Verdict{ResetAt: now.Add(-time.Second)}.RetryAfter(now))
}

func TestQuotaPolicy_LimitAndValidate(t *testing.T) {
	p := DefaultQuotaPolicy()
	require.NoError(t, p.Validate())

	for _, c := range Categories {
		_, err := p.Limit(c)
		assert.NoError(t, err, "category %s", c)
	}

	_, err := p.Limit("unknown")
	assert.Error(t, err)

	p[CategoryUpload] = Limit{Max: 0, Window: time.Minute}
	assert.Error(t, p.Validate())
}

func TestErrors_UnwrapToSentinels(t *testing.T) {
	var err error = &QuotaExceededError{Key: NewQuotaKey(CategoryLogin, "x"), ResetAt: time.Now()}
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	err = BanDecision{Status: Active}.Err()
	assert.True(t, errors.Is(err, ErrAccessSuspended))
	assert.Contains(t, err.Error(), "permanently")

	assert.NoError(t, BanDecision{Status: NotBanned}.Err())

	err = InvalidAdminAction("unknown action %q", "nope")
	assert.True(t, errors.Is(err, ErrInvalidAdminAction))
	assert.Equal(t, `unknown action "nope"`, err.Error())
}
