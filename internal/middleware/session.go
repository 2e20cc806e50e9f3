package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/pkg/utils"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions with other packages.
type contextKey string

// ClientSessionKey is the context key for the resolved client session.
const ClientSessionKey contextKey = "client_session"

// TokenValidator turns a session token into a session ID.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// SessionLookup finds live client sessions.
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (*services.ClientSession, error)
}

// GateChecker decides whether a session may see a surface.
type GateChecker interface {
	RequireUnlocked(session *services.ClientSession) error
	RequireSiteVisible(session *services.ClientSession) error
}

// SessionAuth resolves the client session named by the request's token.
//
// The token is read from:
//  1. Authorization header: "Bearer <token>"
//  2. Cookie named cookieName (fallback if header is missing)
//
// A missing, invalid or expired token, or one naming a session that no
// longer exists, is answered with 401. The client then boots again.
//
// Example:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(middleware.SessionAuth(tokenSvc, sessionSvc, "app_session"))
//	    r.Get("/app/state", appHandler.State)
//	})
func SessionAuth(tokens TokenValidator, sessions SessionLookup, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				utils.RespondWithErrorCode(w, r, http.StatusUnauthorized, "session_required", "Missing session token")
				return
			}

			sessionID, err := tokens.Validate(token)
			if err != nil {
				log.Warn().Err(err).Msg("Invalid session token")
				utils.RespondWithErrorCode(w, r, http.StatusUnauthorized, "session_invalid", "Invalid session token")
				return
			}

			session, err := sessions.GetSession(r.Context(), sessionID)
			if err != nil {
				log.Debug().Str("session_id", sessionID).Msg("Session expired")
				utils.RespondWithErrorCode(w, r, http.StatusUnauthorized, "session_expired", "Session expired, boot again")
				return
			}

			ctx := context.WithValue(r.Context(), ClientSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUnlocked only lets authenticated sessions through. It must run
// after SessionAuth.
func RequireUnlocked(gate GateChecker) func(http.Handler) http.Handler {
	return requireGate(func(s *services.ClientSession) error { return gate.RequireUnlocked(s) })
}

// RequireSiteVisible rejects requests while the whole site is locked. It
// must run after SessionAuth.
func RequireSiteVisible(gate GateChecker) func(http.Handler) http.Handler {
	return requireGate(func(s *services.ClientSession) error { return gate.RequireSiteVisible(s) })
}

func requireGate(check func(*services.ClientSession) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := GetClientSession(r.Context())
			if !ok {
				utils.RespondWithErrorCode(w, r, http.StatusUnauthorized, "session_required", "Missing session")
				return
			}

			if err := check(session); err != nil {
				RespondGateError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RespondGateError maps a gate refusal to its HTTP status.
func RespondGateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrSiteLocked):
		utils.RespondWithErrorCode(w, r, http.StatusLocked, "site_locked", "The site is locked, enter the passcode")
	case errors.Is(err, services.ErrGateRequired):
		utils.RespondWithErrorCode(w, r, http.StatusForbidden, "gate_required", "Enter the passcode to continue")
	default:
		utils.RespondWithError(w, r, http.StatusForbidden, err.Error())
	}
}

// GetClientSession retrieves the client session stored by SessionAuth.
func GetClientSession(ctx context.Context) (*services.ClientSession, bool) {
	session, ok := ctx.Value(ClientSessionKey).(*services.ClientSession)
	return session, ok
}

// WithClientSession stores a session in ctx. Handlers tests use it to skip
// the token round trip.
func WithClientSession(ctx context.Context, session *services.ClientSession) context.Context {
	return context.WithValue(ctx, ClientSessionKey, session)
}
