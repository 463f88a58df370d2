package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rootedapp/portal/internal/app/metrics"
)

// MetricsMiddleware records request counts, latency, and the in-flight gauge
// for every route. It labels by the mux route template so path parameters do
// not explode cardinality.
func MetricsMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			wrapped := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					path = template
				}
			}

			metrics.RecordHTTPRequest(r.Method, path, wrapped.Status(), time.Since(start))
		})
	}
}
