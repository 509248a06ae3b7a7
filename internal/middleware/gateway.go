package middleware

import (
	"crypto/subtle"
	"net/http"
)

// GatewayKeyHeader carries the ingestion gateway credential.
const GatewayKeyHeader = "X-Gateway-Key"

// GatewayAuth guards the ingest entry point. External dispatch sources are
// not users; they authenticate with a shared gateway credential issued out
// of band. An empty configured key disables the endpoint entirely.
func GatewayAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, `{"error":"ingest gateway disabled"}`, http.StatusForbidden)
				return
			}
			presented := r.Header.Get(GatewayKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				http.Error(w, `{"error":"invalid gateway credential"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
