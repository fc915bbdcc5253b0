package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/labx-platform/testbed/pkg/composables"
)

// Provide stores value under key in every request context.
func Provide(key any, value any) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), key, value)))
		})
	}
}

func RequestParams(realIPHeader string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := &composables.Params{
				IP:        getRealIP(r, realIPHeader),
				UserAgent: r.UserAgent(),
				RequestID: composables.UseRequestID(r.Context()),
				Request:   r,
				Writer:    w,
			}
			next.ServeHTTP(w, r.WithContext(composables.WithParams(r.Context(), params)))
		})
	}
}
