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

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protected(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := StaffClaimsFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "staff@oakdental", claims.Subject)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminJWTAcceptsValidToken(t *testing.T) {
	h := AdminJWT(testSecret)(protected(t))

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "staff@oakdental",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminJWTRejectsMissingHeader(t *testing.T) {
	h := AdminJWT(testSecret)(protected(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWTRejectsWrongSecret(t *testing.T) {
	h := AdminJWT(testSecret)(protected(t))

	token := signToken(t, "other-secret", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWTRejectsExpiredToken(t *testing.T) {
	h := AdminJWT(testSecret)(protected(t))

	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWTDisabledWithoutSecret(t *testing.T) {
	h := AdminJWT("")(protected(t))

	req := httptest.NewRequest(http.MethodGet, "/admin/appointments", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
