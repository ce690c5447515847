// Package service dispatches a parsed request to the first action whose
// method and first-token pattern match.
package service

import "strings"

// Query holds decoded query-string parameters. Later keys overwrite earlier ones.
type Query map[string]string

// Has reports whether the key is present with a non-empty value.
func (q Query) Has(key string) bool {
	return q[key] != ""
}

// Request is the parsed form of an HTTP request, minus the service name.
type Request struct {
	Method string
	Tokens []string
	Query  Query
	Body   any
}

// HandlerFunc handles one action. tokens excludes the matched first token.
type HandlerFunc func(ctx *Context, tokens []string, query Query, body any) (any, error)

type noContent struct{}

// NoContent is returned when a request produced no result. It is written
// as 204 without a body or Content-Type.
var NoContent any = noContent{}

// IsNoContent reports whether a handler result means "no result".
func IsNoContent(v any) bool {
	_, ok := v.(noContent)
	return ok
}

type action struct {
	method  string
	pattern string
	handler HandlerFunc
}

// Service is an ordered list of actions.
type Service struct {
	actions []action
}

// New creates an empty Service.
func New() *Service {
	return &Service{}
}

// Register adds an action. Patterns are "*" (anything), ":name" (anything,
// captured into Context.Params) or a literal first token.
func (s *Service) Register(method, pattern string, h HandlerFunc) {
	s.actions = append(s.actions, action{method: strings.ToUpper(method), pattern: pattern, handler: h})
}

func (s *Service) Get(pattern string, h HandlerFunc)    { s.Register("GET", pattern, h) }
func (s *Service) Post(pattern string, h HandlerFunc)   { s.Register("POST", pattern, h) }
func (s *Service) Put(pattern string, h HandlerFunc)    { s.Register("PUT", pattern, h) }
func (s *Service) Patch(pattern string, h HandlerFunc)  { s.Register("PATCH", pattern, h) }
func (s *Service) Delete(pattern string, h HandlerFunc) { s.Register("DELETE", pattern, h) }

// Handle runs the first matching action. With no match the result is NoContent.
func (s *Service) Handle(ctx *Context, req Request) (any, error) {
	var first string
	if len(req.Tokens) > 0 {
		first = req.Tokens[0]
	}

	for _, a := range s.actions {
		if a.method != req.Method || !match(ctx, first, a.pattern) {
			continue
		}
		var rest []string
		if len(req.Tokens) > 1 {
			rest = req.Tokens[1:]
		}
		return a.handler(ctx, rest, req.Query, req.Body)
	}
	return NoContent, nil
}

func match(ctx *Context, token, pattern string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, ":"):
		if ctx.Params == nil {
			ctx.Params = make(map[string]string)
		}
		ctx.Params[pattern[1:]] = token
		return true
	default:
		return token == pattern
	}
}
