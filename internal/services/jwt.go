package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

// TokenService issues and validates the signed handle a client presents on
// every request. The token names an in-memory ClientSession and nothing else:
// whether the session has entered the passcode is never encoded in it, so a
// token cannot outlive a logout or a server restart in any useful way.
type TokenService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// SessionToken is returned to clients on boot.
//
// Example JSON response:
//
//	{
//	  "token": "eyJhbGciOiJIUzI1NiIs...",
//	  "expires_at": "2024-01-20T15:00:00Z"
//	}
type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims of a session token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewTokenService creates a token service using HS256 and the configured
// session secret.
func NewTokenService(cfg *config.SessionConfig) *TokenService {
	return &TokenService{
		secret: cfg.Secret,
		expiry: cfg.TokenExpiry,
		now:    time.Now,
	}
}

// Issue signs a token naming sessionID.
func (s *TokenService) Issue(sessionID string) (*SessionToken, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        generateJTI(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &SessionToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Validate checks the signature and expiry and returns the session ID.
func (s *TokenService) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("invalid token claims")
	}

	return claims.SessionID, nil
}

// generateJTI returns a URL-safe base64 string of 16 random bytes.
func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
