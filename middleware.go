package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestLogger logs each HTTP request with its status, response size, and
// duration. Query strings are included because the county endpoints carry
// their parameters there.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		logEvent := log.Info()
		if ww.statusCode >= http.StatusInternalServerError {
			logEvent = log.Error()
		}
		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", ww.statusCode).
			Int64("bytes", ww.written).
			Str("ip", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})
}

// responseWriterWrapper captures the status code and body size as they pass
// through to the underlying writer.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (w *responseWriterWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}
