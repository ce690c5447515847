package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sipico/practice-server/internal/admin"
	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/middleware"
	"github.com/sipico/practice-server/internal/service"
)

// ServeHTTP runs one service request: parse, dispatch on the first path
// token, then write the result or the error.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := middleware.Logger(r.Context(), a.logger)

	result, err := a.dispatch(r, logger)
	if err != nil {
		apperr.Write(w, logger, err, "request_id", middleware.GetRequestID(r.Context()))
		return
	}
	writeResult(w, result)
}

func (a *App) dispatch(r *http.Request, logger *slog.Logger) (any, error) {
	tokens := splitPath(r.URL.Path)
	var name string
	if len(tokens) > 0 {
		name, tokens = tokens[0], tokens[1:]
	}

	svc, ok := a.services[name]
	if !ok {
		logger.Warn("unsupported service", "service", name)
		return nil, apperr.Request(fmt.Sprintf(`Service "%s" is not supported`, name))
	}

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	ctx := a.context(r, logger)
	return svc.Handle(ctx, service.Request{
		Method: r.Method,
		Tokens: tokens,
		Query:  ParseQuery(r.URL.RawQuery),
		Body:   body,
	})
}

// context decorates a request with the shared state and the identity found
// by the auth middleware.
func (a *App) context(r *http.Request, logger *slog.Logger) *service.Context {
	_, isAdmin := r.Header[http.CanonicalHeaderKey(admin.HeaderAdmin)]
	return &service.Context{
		Ctx:       r.Context(),
		Method:    r.Method,
		Params:    map[string]string{},
		Storage:   a.Storage,
		Protected: a.Protected,
		Auth:      a.Auth,
		Flags:     a.Flags,
		Rules:     a.Rules,
		Logger:    logger,
		User:      auth.UserFromContext(r.Context()),
		Token:     auth.TokenFromContext(r.Context()),
		Admin:     isAdmin,
	}
}

func splitPath(p string) []string {
	var tokens []string
	for _, t := range strings.Split(p, "/") {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ParseQuery decodes a raw query string. Pairs split on the first "=", "+"
// becomes a space and values that fail to unescape are kept as sent. Keys
// are not decoded.
func ParseQuery(raw string) service.Query {
	q := service.Query{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		value = strings.ReplaceAll(value, "+", " ")
		if decoded, err := url.PathUnescape(value); err == nil {
			value = decoded
		}
		q[key] = value
	}
	return q
}

// readBody returns the JSON-decoded body, the raw text when it is not JSON,
// or nil when it is empty.
func readBody(r *http.Request) (any, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			return nil, apperr.Request("Request body too large")
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return string(raw), nil
	}
	return body, nil
}

func writeResult(w http.ResponseWriter, result any) {
	if service.IsNoContent(result) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		apperr.Write(w, nil, fmt.Errorf("encode response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}
