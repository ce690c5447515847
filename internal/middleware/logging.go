// Package middleware provides the HTTP middleware shared by every route:
// request ids, debug request logging, body limits and CORS.
package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/sipico/practice-server/internal/logging"
)

// HTTPLogging logs every request and response at debug level. When the
// logger is above debug the middleware only passes the request through.
//
// Headers are masked with logging.MaskHeader. JSON bodies have the
// denylisted fields redacted; a nil denylist logs bodies as sent.
func HTTPLogging(logger *slog.Logger, denylist []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logger.Enabled(r.Context(), slog.LevelDebug) {
				next.ServeHTTP(w, r)
				return
			}

			logRequest(logger, r, denylist)

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           new(bytes.Buffer),
			}
			start := time.Now()
			next.ServeHTTP(rec, r)

			logger.Debug("HTTP Response",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"url", r.URL.Path,
				"status_code", rec.statusCode,
				"headers", maskHeaders(rec.Header()),
				"body", maskBody(rec.body.Bytes(), denylist),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// maxLoggedBody caps how much of a request body is buffered for logging.
const maxLoggedBody = 64 << 10

// logRequest logs the request and puts the consumed prefix back in front of
// the unread rest of the body. Bodies over maxLoggedBody are not logged.
func logRequest(logger *slog.Logger, r *http.Request, denylist []string) {
	var logged string
	if r.Body != nil {
		prefix, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		if err != nil {
			logger.Debug("failed to read request body for logging",
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
		}
		r.Body = prefixedBody{Reader: io.MultiReader(bytes.NewReader(prefix), r.Body), Closer: r.Body}

		switch {
		case err != nil:
		case len(prefix) > maxLoggedBody:
			logged = fmt.Sprintf("[TRUNCATED: over %d bytes]", maxLoggedBody)
		default:
			logged = maskBody(prefix, denylist)
		}
	}

	logger.Debug("HTTP Request",
		"request_id", GetRequestID(r.Context()),
		"method", r.Method,
		"url", r.URL.Path,
		"query_params", r.URL.RawQuery,
		"headers", maskHeaders(r.Header),
		"body", logged,
	)
}

// prefixedBody replays the bytes read for logging and closes the original.
type prefixedBody struct {
	io.Reader
	io.Closer
}

func maskHeaders(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = logging.MaskHeader(k, v[0])
		}
	}
	return result
}

func maskBody(body []byte, denylist []string) string {
	if len(body) == 0 {
		return ""
	}
	if !utf8.Valid(body) {
		return logging.FormatBinaryData(body)
	}
	return string(logging.MaskJSONBody(body, denylist))
}

// responseRecorder captures response details for logging.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
