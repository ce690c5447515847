package auth

import (
	"log/slog"
	"net/http"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/middleware"
)

// HeaderToken carries the access token.
const HeaderToken = "X-Authorization"

// Middleware returns Chi-compatible middleware that identifies the user
// behind X-Authorization. Requests without the header pass through
// anonymously; an unknown token ends the request with 403.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values := r.Header.Values(HeaderToken)
			if len(values) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			token := values[0]
			user, err := svc.Identify(r.Context(), token)
			if err != nil {
				metrics.RecordAuthFailure("invalid_token")
				apperr.Write(w, logger, err, "request_id", middleware.GetRequestID(r.Context()))
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
