package middleware

import "net/http"

// Preflight header values sent on OPTIONS.
const (
	CORSAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	CORSAllowHeaders = "X-Requested-With, X-HTTP-Method-Override, Content-Type, Accept, X-Authorization, X-Admin"
	CORSMaxAge       = "86400"
)

// CORS allows any origin. OPTIONS requests are answered here with the
// preflight headers and an empty 200, so they never reach a service.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
			h.Set("Access-Control-Allow-Credentials", "false")
			h.Set("Access-Control-Max-Age", CORSMaxAge)
			h.Set("Access-Control-Allow-Headers", CORSAllowHeaders)
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
