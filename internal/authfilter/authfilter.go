// Package authfilter validates the single shared bearer token required by
// every request, from either the Authorization header or the token query
// parameter (the latter for WebSocket upgrades, which cannot set headers from
// a browser EventSource/WS client).
package authfilter

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Filter compares incoming credentials against a fixed token in constant time.
type Filter struct {
	token []byte
}

// New builds a Filter for the given shared token.
func New(token string) *Filter {
	return &Filter{token: []byte(token)}
}

// Authenticate reports whether r carries the correct bearer token, checking
// the Authorization header first and falling back to the ?token= query
// parameter.
func (f *Filter) Authenticate(r *http.Request) bool {
	candidate := extractFromHeader(r)
	if candidate == "" {
		candidate = r.URL.Query().Get("token")
	}
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), f.token) == 1
}

func extractFromHeader(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// Middleware rejects unauthenticated requests with 401 before the route
// handler runs.
func (f *Filter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Authenticate(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
