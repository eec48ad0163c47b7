package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubTokens map[string]string

func (s stubTokens) ParseAccessToken(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

type stubUsers struct {
	active map[string]bool
	err    error
}

func (s stubUsers) IsActive(_ context.Context, id string) (bool, error) {
	return s.active[id], s.err
}

func TestRequireAuth(t *testing.T) {
	tokens := stubTokens{"good": "user-1", "inactive": "user-2", "ghost": "user-3"}
	users := stubUsers{active: map[string]bool{"user-1": true, "user-2": false}}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		header     string
		users      ActiveChecker
		wantStatus int
		wantUser   string
	}{
		{name: "Valid", header: "Bearer good", users: users, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "LowercaseScheme", header: "bearer good", users: users, wantStatus: http.StatusOK, wantUser: "user-1"},
		{name: "MissingHeader", header: "", users: users, wantStatus: http.StatusUnauthorized},
		{name: "WrongScheme", header: "Basic good", users: users, wantStatus: http.StatusUnauthorized},
		{name: "EmptyToken", header: "Bearer ", users: users, wantStatus: http.StatusUnauthorized},
		{name: "InvalidToken", header: "Bearer forged", users: users, wantStatus: http.StatusUnauthorized},
		{name: "InactiveUser", header: "Bearer inactive", users: users, wantStatus: http.StatusUnauthorized},
		{name: "UnknownUser", header: "Bearer ghost", users: users, wantStatus: http.StatusUnauthorized},
		{name: "LookupError", header: "Bearer good", users: stubUsers{err: errors.New("db down")}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			RequireAuth(tokens, tt.users, zerolog.Nop())(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"detail":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestUserID_Missing(t *testing.T) {
	_, ok := UserID(context.Background())

	assert.False(t, ok)
}
