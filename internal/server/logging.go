package server

import (
	"log"
	"net/http"
	"time"
)

func withLogging(logger *log.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Printf("REQ %s %s UA=%q From=%s", r.Method, r.URL.String(), r.UserAgent(), r.RemoteAddr)
		if v := r.Header.Get("Content-Type"); v != "" {
			logger.Printf("HDR Content-Type: %s", v)
		}
		next.ServeHTTP(w, r)
		logger.Printf("END %s %s in %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
