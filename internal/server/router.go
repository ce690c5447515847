package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/logging"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/middleware"
)

// Handler returns the root router.
//
// Middleware order: request id, body limit, debug logging, metrics, panic
// recovery, CORS, throttle. OPTIONS requests stop at CORS. Static routes are
// answered before token identification; every other path goes through the
// auth middleware and then the service front.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.MaxBodySize(a.cfg.MaxBodyBytes))
	r.Use(middleware.HTTPLogging(a.logger, logging.SensitiveFields))
	r.Use(metrics.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)
	r.Use(a.throttle)

	a.admin.Routes(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.Auth, a.logger))
		r.Handle("/", a)
		r.Handle("/*", a)
	})

	return r
}
