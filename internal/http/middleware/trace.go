package middleware

import (
	"log"
	"net/http"
	"time"
)

// statusWriter records the response code while keeping http.Flusher
// available, which event-stream handlers require.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func Trace(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			if logger != nil {
				logger.Printf(
					"trace request_id=%s method=%s path=%s status=%d duration_ms=%d",
					GetRequestID(r.Context()),
					r.Method,
					r.URL.Path,
					recorder.status,
					time.Since(start).Milliseconds(),
				)
			}
		})
	}
}
