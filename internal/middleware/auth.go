package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/feedline/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// TokenParser validates an access token and returns its subject.
type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// ActiveChecker reports whether a user may use the API.
type ActiveChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

// RequireAuth returns middleware that validates a Bearer JWT, checks that the
// subject is an active user, and injects the user ID into the request context.
func RequireAuth(tokens TokenParser, users ActiveChecker, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Unauthorized")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				response.Unauthorized(w, "Unauthorized")
				return
			}

			userID, err := tokens.ParseAccessToken(parts[1])
			if err != nil {
				response.Unauthorized(w, "Unauthorized")
				return
			}

			active, err := users.IsActive(r.Context(), userID)
			if err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("auth: active user lookup failed")
				response.InternalError(w)
				return
			}
			if !active {
				response.Unauthorized(w, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user's ID stored by RequireAuth.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}
