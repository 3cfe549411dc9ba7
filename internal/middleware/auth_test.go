package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authTestHandler(t *testing.T, validator JWTValidator) (http.Handler, *string) {
	t.Helper()
	var principal string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return RequireAuth(validator)(inner), &principal
}

func TestRequireAuth_OpenWhenNoValidator(t *testing.T) {
	t.Parallel()

	handler, _ := authTestHandler(t, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	t.Parallel()

	v, err := NewHS256Validator("secret")
	require.NoError(t, err)
	handler, _ := authTestHandler(t, v)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "bearer token")
}

func TestRequireAuth_BadToken(t *testing.T) {
	t.Parallel()

	v, err := NewHS256Validator("secret")
	require.NoError(t, err)
	handler, _ := authTestHandler(t, v)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	t.Parallel()

	v, err := NewHS256Validator("secret")
	require.NoError(t, err)
	handler, principal := authTestHandler(t, v)

	token := makeToken("secret", jwt.MapClaims{
		"sub": "ops-bot",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-bot", *principal)
}
