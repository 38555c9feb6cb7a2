package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/escolaware/portaria-bridge/internal/audit"
	"github.com/escolaware/portaria-bridge/internal/lookup"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// handleSearch serves the staff search box: the matching students with
// their photos, from cache when a recent identical query exists.
func handleSearch(service *lookup.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		query := r.URL.Query().Get("q")
		audit.Log(r.Context()).Query = query

		result, err := service.Search(r.Context(), query)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("student search failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		writeJSON(w, result)
	})
}

// handleStudentDetail serves the pickup view for one student: the people
// authorized to collect them, grouped parents first, plus the exit rules.
func handleStudentDetail(service *lookup.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		code, err := strconv.Atoi(r.PathValue("id"))
		if err != nil || code <= 0 {
			log.Info().Msgf("invalid student code parameter: %q", r.PathValue("id"))
			writeJSONError(w, http.StatusBadRequest, "a numeric student code is required")
			return
		}

		audit.Log(r.Context()).StudentCode = code

		detail, err := service.Detail(r.Context(), code)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("student detail failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		writeJSON(w, detail)
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// writeJSON writes the response body as JSON.
func writeJSON(w http.ResponseWriter, body any) {
	marshalled, err := json.Marshal(body)
	if err != nil {
		requestError(w, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(marshalled); err != nil {
		// record failure to log: trying to respond to the client at this
		// point will likely fail
		log.Info().Msgf("failed to write response: %v", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5kb max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
