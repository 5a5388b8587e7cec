package middleware

import (
	"context"
	"net/http"
	"strings"

	"flashcards/internal/util"

	"github.com/rs/zerolog"
)

// Injected key type to avoid context collisions
type contextKey string

const (
	UserContextKey  = contextKey("user")
	EmailContextKey = contextKey("email")
)

// AuthMiddleware requires a bearer token and places its subject and email in
// the request context.
func AuthMiddleware(jwtKey string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn().Str("path", r.URL.Path).Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Warn().Str("path", r.URL.Path).Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(parts[1], jwtKey)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid token")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			ctx = context.WithValue(ctx, EmailContextKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id, or "" outside AuthMiddleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserContextKey).(string)
	return id
}

// Email returns the authenticated user's email claim, possibly "".
func Email(ctx context.Context) string {
	email, _ := ctx.Value(EmailContextKey).(string)
	return email
}
