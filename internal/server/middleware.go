package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// Logging logs one line per request with its status and latency.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{"method", r.Method, "path", r.URL.Path, "status", status, "bytes", rec.bytes, "duration", time.Since(start)}
			if status >= 500 {
				logger.Error("request", fields...)
			} else {
				logger.Info("request", fields...)
			}
		})
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("handler panicked", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
					writeJSON(logger, w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
