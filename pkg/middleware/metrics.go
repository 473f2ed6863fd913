// Package middleware wraps the search service's HTTP handlers. The chain in
// cmd/searcher is RequestID, then Metrics, an optional RateLimit and
// Timeout innermost.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kk0kc/oip/pkg/metrics"
)

// Metrics records request count, latency and the in-flight gauge.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

// knownPaths bounds label cardinality; anything else is reported as "other".
var knownPaths = []string{
	"/api/v1/search/vector",
	"/api/v1/search/boolean",
	"/api/v1/snapshot/reload",
	"/api/v1/snapshot",
	"/api/v1/cache/stats",
	"/api/v1/cache/invalidate",
	"/api/v1/documents",
	"/health/live",
	"/health/ready",
	"/metrics",
}

func normalizePath(path string) string {
	for _, p := range knownPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return p
		}
	}
	return "other"
}
