package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/auddy/backend/internal/logger"
)

// timingResponseWriter stamps Server-Timing just before the header is sent.
type timingResponseWriter struct {
	http.ResponseWriter
	start       time.Time
	statusCode  int
	wroteHeader bool
}

func (w *timingResponseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.statusCode = code
		w.Header().Set("Server-Timing", formatServerTiming(time.Since(w.start)))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *timingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Timing adds a Server-Timing header and warns about requests slower than
// slow. Downloads and websocket connections are skipped.
func Timing(log *logger.Logger, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passthrough(r) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &timingResponseWriter{ResponseWriter: w, start: time.Now(), statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if d := time.Since(wrapped.start); slow > 0 && d > slow {
				log.Warn(r.Context(), "slow request", logger.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      wrapped.statusCode,
					"duration_ms": d.Milliseconds(),
				})
			}
		})
	}
}

func formatServerTiming(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	return "total;dur=" + strconv.FormatFloat(ms, 'f', 2, 64)
}
