package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/gocup/internal/api/apierr"
	"github.com/mcoot/gocup/internal/model"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	tokenContextKey contextKey = "token"
)

// TokenCookie is the cookie checked when no Authorization header is present
const TokenCookie = "token"

// Authenticator resolves a bearer token to a user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Auth creates authentication middleware
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
		})
	}
}

// OptionalAuth extracts the user if a valid token is present but doesn't require it
func OptionalAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := extractToken(r); token != "" {
				if user, err := authenticator.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(withUser(r.Context(), user, token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withUser(ctx context.Context, user *model.User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// extractToken extracts the bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	cookie, err := r.Cookie(TokenCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetUser returns the authenticated user from the request context
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// GetToken returns the token the request was authenticated with
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetUser returns the authenticated user or panics
func MustGetUser(ctx context.Context) *model.User {
	user := GetUser(ctx)
	if user == nil {
		panic("no user in context - auth middleware not applied?")
	}
	return user
}
