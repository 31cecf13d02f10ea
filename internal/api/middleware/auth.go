package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/capitalduel/internal/api/apierr"
	"github.com/mcoot/capitalduel/internal/model"
)

type contextKey string

const (
	usernameContextKey contextKey = "username"
	sessionContextKey  contextKey = "session"
)

// SessionCookie is the cookie that may carry a session token
const SessionCookie = "session"

// SessionValidator resolves session tokens
type SessionValidator interface {
	ValidateSession(token string) (*model.Session, error)
}

// Auth creates authentication middleware. Requests without a valid
// session are rejected with 401 before reaching the handler.
func Auth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			session, err := sessions.ValidateSession(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, sessionContextKey, session)
			ctx = context.WithValue(ctx, usernameContextKey, session.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the session token from the request
func extractToken(r *http.Request) string {
	// Check Authorization header first
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Browsers cannot set headers on a websocket handshake
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	cookie, err := r.Cookie(SessionCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetUsername returns the authenticated username from the request context
func GetUsername(ctx context.Context) (model.Username, bool) {
	username, ok := ctx.Value(usernameContextKey).(model.Username)
	return username, ok
}

// GetSession returns the session from the request context
func GetSession(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// MustGetUsername returns the authenticated username or panics
func MustGetUsername(ctx context.Context) model.Username {
	username, ok := GetUsername(ctx)
	if !ok {
		panic("no username in context - auth middleware not applied?")
	}
	return username
}
