package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	user := models.User{ID: 7, Email: "ada@example.com", Role: models.RoleAdmin}

	signed, claims, err := issuer.Generate(user)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.InDelta(t, TokenTTL.Seconds(), claims.TTL(time.Now()).Seconds(), 5)

	parsed, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(7), parsed.UserID)
	assert.Equal(t, models.RoleAdmin, parsed.Role)
	assert.Equal(t, claims.ID, parsed.ID)

	_, second, err := issuer.Generate(user)
	require.NoError(t, err)
	assert.NotEqual(t, claims.ID, second.ID, "every token gets its own jti")
}

func TestParseRejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")
	signed, _, err := issuer.Generate(models.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret").Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse(strings.TrimSuffix(signed, signed[len(signed)-2:]))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenIssuer("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old, _, err := expired.Generate(models.User{ID: 1})
	require.NoError(t, err)
	_, err = issuer.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1, "jti": "x"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswords(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("short"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword(strings.Repeat("x", 73)), ErrWeakPassword)
	assert.NoError(t, ValidatePassword("eight ch"))

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("correct horse", hash))
	assert.False(t, VerifyPassword("wrong horse", hash))
	assert.False(t, VerifyPassword("anything", ""))
}
