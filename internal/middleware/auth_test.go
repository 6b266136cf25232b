package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, userID, secret string, ttl time.Duration) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

type stubVerifier map[string]string

func (s stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	uid, ok := s[idToken]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: uid}, nil
}

func run(mw echo.MiddlewareFunc, req *http.Request) (string, int, int) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	calls := 0
	var seen string
	err := mw(func(c echo.Context) error {
		calls++
		seen, _ = c.Get(UserIDKey).(string)
		return c.NoContent(http.StatusNoContent)
	})(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return seen, rec.Code, calls
}

func TestJWTAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
		user   string
	}{
		{"valid", "Bearer " + signed(t, "alice", testSecret, time.Hour), http.StatusNoContent, "alice"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"malformed", "Token abc", http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + signed(t, "alice", "other", time.Hour), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signed(t, "alice", testSecret, -time.Minute), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signed(t, "", testSecret, time.Hour), http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			user, code, _ := run(JWTAuthMiddleware(testSecret), req)
			assert.Equal(t, tt.want, code)
			assert.Equal(t, tt.user, user)
		})
	}
}

func TestJWTAuthMiddleware_WebsocketQueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?access_token="+signed(t, "bob", testSecret, time.Hour), nil)
	req.Header.Set("Upgrade", "websocket")
	user, code, _ := run(JWTAuthMiddleware(testSecret), req)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, "bob", user)

	plain := httptest.NewRequest(http.MethodGet, "/?access_token="+signed(t, "bob", testSecret, time.Hour), nil)
	_, code, _ = run(JWTAuthMiddleware(testSecret), plain)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestEitherAuth(t *testing.T) {
	mw := EitherAuth(JWTAuthMiddleware(testSecret), FirebaseAuthMiddleware(stubVerifier{"fb-token": "carol"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, "alice", testSecret, time.Hour))
	user, code, calls := run(mw, req)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 1, calls)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer fb-token")
	user, code, calls = run(mw, req)
	assert.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, "carol", user)
	assert.Equal(t, 1, calls)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer junk")
	_, code, calls = run(mw, req)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 0, calls)
}
