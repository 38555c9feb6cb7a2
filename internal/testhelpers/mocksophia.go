package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockSophiaServer provides a configurable mock of the Sophia API for
// testing. Request counters allow tests to assert cache short-circuiting.
type MockSophiaServer struct {
	Server *httptest.Server

	Token         string         // Token returned by the login endpoint
	LoginStatus   int            // Status for the login endpoint (200 if not set)
	Students      []MockStudent  // Students returned by the search endpoint
	Guardians     []MockGuardian // Guardians returned by the responsaveis endpoint
	Authorization map[string]any // Raw authorization payload
	StudentPhotos map[int]string // Photos by student code; absent means empty response
	GuardPhotos   map[int]string // Photos by guardian code; absent means empty response
	SearchStatus  int            // Status for the search endpoint (200 if not set)

	LoginCount  int // Number of login requests received
	SearchCount int // Number of search requests received
	PhotoCount  int // Number of photo requests received (both kinds)
}

type MockStudent struct {
	Codigo int    `json:"codigo"`
	Nome   string `json:"nome"`
}

type MockGuardian struct {
	Codigo             int            `json:"codigo"`
	Nome               string         `json:"nome"`
	TipoVinculo        map[string]any `json:"tipoVinculo"`
	RetiradaAutorizada bool           `json:"retiradaAutorizada"`
}

// SetupMockSophiaServer creates a mock Sophia API server covering the
// endpoints the bridge consumes.
func SetupMockSophiaServer(t *testing.T) *MockSophiaServer {
	t.Helper()

	mock := &MockSophiaServer{
		Token:         "mock-token",
		Authorization: map[string]any{},
		StudentPhotos: map[int]string{},
		GuardPhotos:   map[int]string{},
	}

	router := http.NewServeMux()

	router.HandleFunc("POST /api/v1/Autenticacao", func(w http.ResponseWriter, r *http.Request) {
		mock.LoginCount++

		if mock.LoginStatus != 0 && mock.LoginStatus != http.StatusOK {
			w.WriteHeader(mock.LoginStatus)
			return
		}

		w.Write([]byte(mock.Token))
	})

	router.HandleFunc("GET /api/v1/Alunos", func(w http.ResponseWriter, r *http.Request) {
		mock.SearchCount++

		if mock.SearchStatus != 0 && mock.SearchStatus != http.StatusOK {
			w.WriteHeader(mock.SearchStatus)
			return
		}

		WriteJSON(t, w, mock.Students)
	})

	router.HandleFunc("GET /api/v1/Alunos/{id}", func(w http.ResponseWriter, r *http.Request) {
		for _, student := range mock.Students {
			if fmt.Sprint(student.Codigo) == r.PathValue("id") {
				WriteJSON(t, w, student)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	router.HandleFunc("GET /api/v1/alunos/{id}/responsaveis", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(t, w, mock.Guardians)
	})

	router.HandleFunc("GET /api/v1/alunos/{id}/AutorizacaoRetirada", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(t, w, mock.Authorization)
	})

	router.HandleFunc("GET /api/v1/alunos/{id}/Fotos/FotosReduzida", func(w http.ResponseWriter, r *http.Request) {
		mock.PhotoCount++
		writePhoto(t, w, mock.StudentPhotos, r.PathValue("id"))
	})

	router.HandleFunc("GET /api/v1/responsaveis/{id}/fotos/FotoReduzida", func(w http.ResponseWriter, r *http.Request) {
		mock.PhotoCount++
		writePhoto(t, w, mock.GuardPhotos, r.PathValue("id"))
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)

	return mock
}

func writePhoto(t *testing.T, w http.ResponseWriter, photos map[int]string, id string) {
	t.Helper()

	for code, photo := range photos {
		if fmt.Sprint(code) == id {
			WriteJSON(t, w, map[string]string{"foto": photo})
			return
		}
	}
	// 200 with empty body: no photo on record
}

// WriteJSON writes v to the response as JSON, failing the test on error.
func WriteJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode mock response: %v", err)
	}
}
