// Package admin serves the static surface of the practice server: the admin
// panel, the favicon, health probes and the runtime log level API.
package admin

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// Stats is the store view needed by the readiness probe.
type Stats interface {
	Collections() []string
}

// Handler provides the static routes.
type Handler struct {
	store    Stats
	logger   *slog.Logger
	logLevel *slog.LevelVar
	devMode  bool
	dir      string
}

// Option configures a Handler.
type Option func(*Handler)

// WithDevMode serves the panel and its scripts from dir on every request.
func WithDevMode(dir string) Option {
	return func(h *Handler) {
		h.devMode = true
		h.dir = dir
	}
}

// NewHandler creates an admin handler. store may be nil, in which case the
// readiness probe reports 503.
func NewHandler(store Stats, logLevel *slog.LevelVar, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}

	h := &Handler{
		store:    store,
		logLevel: logLevel,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the static routes. They bypass token identification.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)
	r.Get("/favicon.ico", h.HandleFavicon)

	r.HandleFunc("/admin", h.HandleRedirect)
	r.With(RequireAdmin).Post("/admin/api/loglevel", h.HandleSetLogLevel)
	r.Get("/admin/*", h.HandlePanel)
}
