package httpapi

import (
	"net/http"

	"tidesim/internal/config"
)

// corsMiddleware mirrors the teacher's permissive CORS handler: this engine
// has no browser-facing UI of its own, so it allows any origin and answers
// preflight requests directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware caps the request body at config.MaxValueBytes
// before the handler ever reads it (spec.md §4.3.2: enforced "before handler
// invocation"). Handlers still see an error from their Body.Read once the
// cap is exceeded; they translate that into 413 themselves since
// http.MaxBytesReader alone cannot distinguish that case from other read
// errors at this layer.
func bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxValueBytes)
		next.ServeHTTP(w, r)
	})
}
