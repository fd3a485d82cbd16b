package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

type fakeVerifier struct {
	users map[string]*model.User // token -> user
	err   error
	calls []string
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token string) (*model.User, error) {
	f.calls = append(f.calls, token)
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, apperror.Unauthenticated("invalid token")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoUser writes the resolved username, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	name := UsernameFromContext(r.Context())
	if name == "" {
		name = "anonymous"
	}
	_, _ = w.Write([]byte(name))
})

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"nothing", "", "", ""},
		{"cookie", "c-tok", "", "c-tok"},
		{"bearer header", "", "Bearer h-tok", "h-tok"},
		{"lowercase scheme", "", "bearer h-tok", "h-tok"},
		{"cookie wins over header", "c-tok", "Bearer h-tok", "c-tok"},
		{"other scheme ignored", "", "Basic abc", ""},
		{"scheme without token", "", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	v := &fakeVerifier{users: map[string]*model.User{"good": {Username: "name"}}}
	h := Authenticate(v, discardLogger())(echoUser)

	t.Run("valid token resolves user", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "name", w.Body.String())
	})

	t.Run("invalid token is anonymous", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("no token skips verification", func(t *testing.T) {
		v.calls = nil
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "anonymous", w.Body.String())
		assert.Empty(t, v.calls)
	})
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	v := &fakeVerifier{err: errors.New("database is locked")}
	h := Authenticate(v, discardLogger())(echoUser)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer any")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "locked")
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(echoUser)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"valid authentication required"}`, w.Body.String())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithUser(r.Context(), &model.User{Username: "name"}))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "name", w.Body.String())
}
