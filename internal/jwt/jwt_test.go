package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/escolaware/portaria-bridge/internal/audit"
	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/escolaware/portaria-bridge/internal/jwt"
	"github.com/escolaware/portaria-bridge/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://staff.example.test/"
	testAudience = "portaria-bridge"
)

func staticAuthConfig(t *testing.T) (config.AuthorizationConfig, string) {
	t.Helper()

	key := testhelpers.GenerateRSAKey(t)

	cfg := config.AuthorizationConfig{
		Audience:            testAudience,
		IssuerURL:           testIssuer,
		ConfigurationStatic: testhelpers.StaticJWKS(t, key),
	}

	token := testhelpers.SignStaffToken(t, key, testIssuer, testAudience, "staff-member-1")

	return cfg, token
}

func TestMiddleware_DisabledWithoutIssuer(t *testing.T) {
	testhelpers.SetupLogger(t)

	middleware, err := jwt.Middleware(config.AuthorizationConfig{})
	require.NoError(t, err)

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.True(t, called, "disabled authorization must pass requests through")
}

func TestMiddleware_ValidToken(t *testing.T) {
	testhelpers.SetupLogger(t)

	cfg, token := staticAuthConfig(t)

	middleware, err := jwt.Middleware(cfg)
	require.NoError(t, err)

	var subject string
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = audit.Log(r.Context()).Subject
		w.WriteHeader(http.StatusOK)
	}))

	// the audit middleware supplies the entry the subject lands on
	chain := audit.Middleware()(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "staff-member-1", subject)
}

func TestMiddleware_MissingToken(t *testing.T) {
	testhelpers.SetupLogger(t)

	cfg, _ := staticAuthConfig(t)

	middleware, err := jwt.Middleware(cfg)
	require.NoError(t, err)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached without a token")
	}))

	w := httptest.NewRecorder()
	audit.Middleware()(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	// the middleware reports an absent token as a bad request
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestMiddleware_WrongAudience(t *testing.T) {
	testhelpers.SetupLogger(t)

	key := testhelpers.GenerateRSAKey(t)
	cfg := config.AuthorizationConfig{
		Audience:            testAudience,
		IssuerURL:           testIssuer,
		ConfigurationStatic: testhelpers.StaticJWKS(t, key),
	}
	token := testhelpers.SignStaffToken(t, key, testIssuer, "another-service", "staff-member-1")

	middleware, err := jwt.Middleware(cfg)
	require.NoError(t, err)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached with a wrong-audience token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	audit.Middleware()(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestMiddleware_InvalidStaticConfiguration(t *testing.T) {
	cfg := config.AuthorizationConfig{
		Audience:            testAudience,
		IssuerURL:           testIssuer,
		ConfigurationStatic: "not-json",
	}

	_, err := jwt.Middleware(cfg)
	assert.ErrorContains(t, err, "invalid static JWKS configuration")
}
