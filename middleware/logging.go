package middleware

import (
	"log"
	"net/http"
	"time"
)

const slowRequestThreshold = 500 * time.Millisecond

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs requests that failed or were slow.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		elapsed := time.Since(start)
		if wrapper.status >= http.StatusBadRequest || elapsed > slowRequestThreshold {
			log.Printf("%s %s %s %d %v", r.Method, r.RequestURI, r.RemoteAddr, wrapper.status, elapsed)
		}
	})
}
