// Package audit writes one log entry per API request. Pickup lookups are
// safety-sensitive: the trail records who looked up which student, when,
// and with what outcome. The entry is carried in the request context so
// handlers and middleware can annotate it, and is written exactly once when
// the request completes, including when a handler panics.
package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is the level audit entries are written at. Audit entries are
// operational records, not diagnostics: they are emitted regardless of the
// logger's debug configuration.
const Level = zerolog.InfoLevel

type contextKey struct{}

// Entry accumulates the auditable facts of one request.
type Entry struct {
	Method      string
	Path        string
	Query       string
	StudentCode int
	Subject     string
	UserAgent   string
	RemoteAddr  string
	Status      int
	Error       string

	begin time.Time
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Dur("duration", time.Since(e.begin))

	if e.Query != "" {
		ev.Str("query", e.Query)
	}
	if e.StudentCode != 0 {
		ev.Int("studentCode", e.StudentCode)
	}
	if e.Subject != "" {
		ev.Str("subject", e.Subject)
	}
	if e.UserAgent != "" {
		ev.Str("userAgent", e.UserAgent)
	}
	if e.RemoteAddr != "" {
		ev.Str("remoteAddr", e.RemoteAddr)
	}
	if e.Error != "" {
		ev.Str("error", e.Error)
	}
}

// Log returns the audit entry for the request, creating a detached entry if
// the middleware is not present (tests, background work). Mutations of the
// returned entry are reflected in the final audit record.
func Log(ctx context.Context) *Entry {
	entry, ok := ctx.Value(contextKey{}).(*Entry)
	if !ok {
		return &Entry{begin: time.Now()}
	}
	return entry
}

// Middleware captures request metadata, makes the entry available via
// Log(ctx), and writes the entry when the handler returns or panics.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := &Entry{
				Method:     r.Method,
				Path:       r.URL.Path,
				UserAgent:  r.UserAgent(),
				RemoteAddr: r.RemoteAddr,
				begin:      time.Now(),
			}

			ctx := context.WithValue(r.Context(), contextKey{}, entry)
			writer := &statusCapturingWriter{ResponseWriter: w}

			defer func() {
				if rec := recover(); rec != nil {
					entry.Status = http.StatusInternalServerError
					entry.Error = fmt.Sprintf("panic: %v", rec)
					entry.write(ctx)
					panic(rec)
				}

				entry.Status = writer.status()
				entry.write(ctx)
			}()

			next.ServeHTTP(writer, r.WithContext(ctx))
		})
	}
}

func (e *Entry) write(ctx context.Context) {
	log.Ctx(ctx).WithLevel(Level).EmbedObject(e).Msg("audit")
}

// statusCapturingWriter records the response status for the audit entry.
type statusCapturingWriter struct {
	http.ResponseWriter
	wroteStatus int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	if w.wroteStatus == 0 {
		w.wroteStatus = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusCapturingWriter) Write(b []byte) (int, error) {
	if w.wroteStatus == 0 {
		w.wroteStatus = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusCapturingWriter) status() int {
	if w.wroteStatus == 0 {
		return http.StatusOK
	}
	return w.wroteStatus
}
