package services

import (
	"testing"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenService(t *testing.T) *TokenService {
	t.Helper()

	return NewTokenService(&config.SessionConfig{
		Secret:      []byte("test-secret-key-min-32-bytes-long!!"),
		TokenExpiry: time.Hour,
	})
}

func TestTokenService_Issue(t *testing.T) {
	svc := setupTokenService(t)

	t.Run("issues a token that validates", func(t *testing.T) {
		tok, err := svc.Issue("session-1")
		require.NoError(t, err)
		assert.NotEmpty(t, tok.Token)
		assert.True(t, tok.ExpiresAt.After(time.Now()))

		sid, err := svc.Validate(tok.Token)
		require.NoError(t, err)
		assert.Equal(t, "session-1", sid)
	})

	t.Run("each token is unique", func(t *testing.T) {
		a, err := svc.Issue("session-1")
		require.NoError(t, err)
		b, err := svc.Issue("session-1")
		require.NoError(t, err)
		assert.NotEqual(t, a.Token, b.Token)
	})
}

func TestTokenService_Validate(t *testing.T) {
	svc := setupTokenService(t)

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.Error(t, err)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		other := NewTokenService(&config.SessionConfig{
			Secret:      []byte("another-secret-key-min-32-bytes-long"),
			TokenExpiry: time.Hour,
		})
		tok, err := other.Issue("session-1")
		require.NoError(t, err)

		_, err = svc.Validate(tok.Token)
		assert.Error(t, err)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		tok, err := svc.Issue("session-1")
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err = svc.Validate(tok.Token)
		assert.Error(t, err)
	})

	t.Run("rejects the none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "session-1"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("rejects tokens without a session", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(svc.secret)
		require.NoError(t, err)

		_, err = svc.Validate(signed)
		assert.Error(t, err)
	})
}
