package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sipico/practice-server/internal/apperr"
)

// HeaderAdmin marks a request as coming from an administrator.
const HeaderAdmin = "X-Admin"

// RequireAdmin rejects requests without the X-Admin header with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header[http.CanonicalHeaderKey(HeaderAdmin)]; !ok {
			apperr.WriteStatus(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetLogLevelRequest is the request body for POST /admin/api/loglevel
type SetLogLevelRequest struct {
	Level string `json:"level"`
}

// HandleSetLogLevel changes runtime log level
// POST /admin/api/loglevel
// Body: {"level": "debug|info|warn|error"}
func (h *Handler) HandleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req SetLogLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteStatus(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var level slog.Level
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		apperr.WriteStatus(w, http.StatusBadRequest, "Invalid level (must be: debug, info, warn, error)")
		return
	}

	h.logLevel.Set(level)
	h.logger.Info("log level changed", "new_level", req.Level)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Response write errors are unrecoverable
	json.NewEncoder(w).Encode(map[string]string{
		"level": req.Level,
	})
}
