package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// EchoRequestID copies the request id chi assigned into the X-Request-ID
// request and response headers so error bodies and clients can quote it
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r.Header.Set(middleware.RequestIDHeader, id)
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
