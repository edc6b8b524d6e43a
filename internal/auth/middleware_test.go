package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomatch/roomatch-backend/internal/common/utils"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID int64, tokenType, secret string) string {
	t.Helper()
	now := time.Now()
	token, err := utils.GenerateJWT(&utils.JWTClaims{
		UserID:    userID,
		Email:     "alex@example.com",
		Username:  "alex",
		Type:      tokenType,
		ExpiresAt: now.Add(time.Hour).Unix(),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		Issuer:    "roomatch",
	}, secret)
	require.NoError(t, err)
	return token
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/matching/recommendations", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticateValidToken(t *testing.T) {
	mw := NewMiddleware(testSecret)

	var gotUserID int64
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		require.True(t, ok)
		gotUserID = id
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest(signToken(t, 42, "access", testSecret)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(42), gotUserID)
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	mw := NewMiddleware(testSecret)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest(""))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	mw := NewMiddleware(testSecret)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest(signToken(t, 42, "access", "other-secret")))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	mw := NewMiddleware(testSecret)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, authedRequest(signToken(t, 42, "refresh", testSecret)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
