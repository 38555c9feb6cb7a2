package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolaware/portaria-bridge/internal/config"
	"github.com/escolaware/portaria-bridge/internal/lookup"
	"github.com/escolaware/portaria-bridge/internal/relation"
	"github.com/escolaware/portaria-bridge/internal/server"
	"github.com/escolaware/portaria-bridge/internal/testhelpers"
)

// testConfig builds a configuration pointing at the mock Sophia server,
// with authorization disabled and the in-memory result cache.
func testConfig(apiURL string) config.Config {
	return config.Config{
		Sophia: config.SophiaConfig{
			APIURL:              apiURL,
			Tenant:              "colegio-teste",
			User:                "bridge",
			Password:            "secret",
			TokenTTLMinutes:     29,
			APITimeoutSeconds:   10,
			PhotoTimeoutSeconds: 5,
			PhotoWorkers:        10,
		},
		Cache: config.CacheConfig{
			Type:             "memory",
			ResultTTLSeconds: 60,
			MaxEntries:       100,
		},
	}
}

func setupRoutes(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()

	testhelpers.SetupLogger(t)

	handler, err := configureServerRoutes(
		context.Background(), cfg, relation.NewStore(), &server.ShutdownHooks{},
	)
	require.NoError(t, err)

	return handler
}

func TestSearch_EndToEnd(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)
	mock.Students = []testhelpers.MockStudent{
		{Codigo: 11, Nome: "Ana Beatriz Souza"},
		{Codigo: 12, Nome: "Ana Carolina Lima"},
	}
	mock.StudentPhotos[11] = "base64-ana-beatriz"
	// student 12 has no photo on record: must still appear in results

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=ana", nil))

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	var result lookup.SearchResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))

	require.Len(t, result.Students, 2)
	assert.Equal(t, "base64-ana-beatriz", result.Students[0].Photo)
	assert.Empty(t, result.Students[1].Photo, "missing photo must not fail the search")
	assert.False(t, result.FromCache)
}

func TestSearch_RepeatedQueryServedFromCache(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)
	mock.Students = []testhelpers.MockStudent{{Codigo: 11, Nome: "Ana Beatriz Souza"}}

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/search?q=Ana", nil))
	require.Equal(t, http.StatusOK, first.Result().StatusCode)

	// same query, different case: shares the cache entry
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/search?q=ana", nil))
	require.Equal(t, http.StatusOK, second.Result().StatusCode)

	var result lookup.SearchResult
	require.NoError(t, json.NewDecoder(second.Body).Decode(&result))
	assert.True(t, result.FromCache)

	assert.Equal(t, 1, mock.SearchCount, "second query must not reach the upstream search")
	assert.Equal(t, 1, mock.LoginCount, "one login must be shared across calls")
}

func TestSearch_EmptyQuery(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=+++", nil))

	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	assert.Equal(t, 0, mock.LoginCount, "a rejected query must not log in upstream")
}

func TestSearch_UpstreamFailure(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)
	mock.SearchStatus = http.StatusInternalServerError

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=ana", nil))

	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)
}

func TestStudentDetail_EndToEnd(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)
	mock.Students = []testhelpers.MockStudent{{Codigo: 11, Nome: "Ana Beatriz Souza"}}
	mock.Guardians = []testhelpers.MockGuardian{
		{
			Codigo: 21, Nome: "Carlos Souza",
			TipoVinculo:        map[string]any{"descricao": "Pai"},
			RetiradaAutorizada: true,
		},
		{
			Codigo: 22, Nome: "Fernanda Dias",
			TipoVinculo:        map[string]any{"descricao": "Tia"},
			RetiradaAutorizada: true,
		},
		{
			Codigo: 23, Nome: "Roberto Dias",
			TipoVinculo:        map[string]any{"descricao": "Avô"},
			RetiradaAutorizada: false,
		},
	}
	mock.Authorization = map[string]any{
		"deixarEscolaAcompanhado": true,
		"deixarEscolaSozinho":     false,
	}
	mock.GuardPhotos[21] = "base64-carlos"

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/students/11", nil))

	require.Equal(t, http.StatusOK, w.Result().StatusCode)

	var detail lookup.StudentDetail
	require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))

	assert.Equal(t, "Ana Beatriz Souza", detail.StudentName)

	require.Len(t, detail.Guardians, 1)
	assert.Equal(t, "Carlos Souza", detail.Guardians[0].Name)
	assert.Equal(t, "base64-carlos", detail.Guardians[0].Photo)

	require.Len(t, detail.Others, 1, "unauthorized guardian must be excluded")
	assert.Equal(t, "Fernanda Dias", detail.Others[0].Name)

	assert.True(t, detail.ExitRules.LeaveAccompanied)
	assert.False(t, detail.ExitRules.LeaveAlone)
}

func TestStudentDetail_InvalidCode(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	for _, id := range []string{"abc", "-3", "0"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/students/"+id, nil))
		assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode, "id %q", id)
	}

	assert.Equal(t, 0, mock.LoginCount)
}

func TestHealthCheck(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)

	handler := setupRoutes(t, testConfig(mock.Server.URL))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRoutes_RequireStaffToken(t *testing.T) {
	mock := testhelpers.SetupMockSophiaServer(t)

	key := testhelpers.GenerateRSAKey(t)
	cfg := testConfig(mock.Server.URL)
	cfg.Authorization = config.AuthorizationConfig{
		Audience:            "portaria-bridge",
		IssuerURL:           "https://staff.example.test/",
		ConfigurationStatic: testhelpers.StaticJWKS(t, key),
	}

	handler := setupRoutes(t, cfg)

	// no token: rejected before any upstream call
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search?q=ana", nil))
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
	assert.Equal(t, 0, mock.LoginCount)

	// a valid staff token is accepted
	token := testhelpers.SignStaffToken(t, key, "https://staff.example.test/", "portaria-bridge", "staff-member-1")
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=ana", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	// healthcheck stays open
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}
