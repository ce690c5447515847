package client

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sipico/practice-server/internal/logging"
)

// LoggingTransport wraps an http.RoundTripper and logs every exchange at
// debug level. Token headers and credential fields in bodies are masked.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.Logger.Enabled(req.Context(), slog.LevelDebug) {
		return t.transport().RoundTrip(req)
	}
	start := time.Now()

	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	t.Logger.Debug("HTTP Request",
		"method", req.Method,
		"url", req.URL.String(),
		"headers", maskHeaders(req.Header),
		"body", string(logging.MaskJSONBody(reqBody, logging.SensitiveFields)),
	)

	resp, err := t.transport().RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		t.Logger.Error("HTTP request failed",
			"method", req.Method,
			"url", req.URL.String(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.Logger.Debug("HTTP Response",
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"headers", maskHeaders(resp.Header),
		"body", string(logging.MaskJSONBody(respBody, logging.SensitiveFields)),
	)

	return resp, nil
}

func (t *LoggingTransport) transport() http.RoundTripper {
	if t.Transport != nil {
		return t.Transport
	}
	return http.DefaultTransport
}

func maskHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = logging.MaskHeader(k, strings.Join(v, ", "))
	}
	return out
}
