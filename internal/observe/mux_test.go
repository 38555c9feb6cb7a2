package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimMethod(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
	}{
		{
			name:     "GET method with path",
			pattern:  "GET /api/search",
			expected: "/api/search",
		},
		{
			name:     "wildcard segment retained",
			pattern:  "GET /api/students/{id}",
			expected: "/api/students/{id}",
		},
		{
			name:     "path without method",
			pattern:  "/healthcheck",
			expected: "/healthcheck",
		},
		{
			name:     "unknown method prefix left alone",
			pattern:  "INVALID /path",
			expected: "INVALID /path",
		},
		{
			name:     "lowercase method not stripped",
			pattern:  "get /api/search",
			expected: "get /api/search",
		},
		{
			name:     "empty string",
			pattern:  "",
			expected: "",
		},
		{
			name:     "method without trailing space",
			pattern:  "GET",
			expected: "GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimMethod(tt.pattern))
		})
	}
}

func TestMux_RoutesToWrapped(t *testing.T) {
	inner := http.NewServeMux()
	mux := NewMux(inner)

	mux.Handle("GET /api/search", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, http.StatusTeapot, w.Result().StatusCode)
}
