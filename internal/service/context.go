package service

import (
	"context"
	"log/slog"

	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/rules"
	"github.com/sipico/practice-server/internal/storage"
)

// Context is the per-request state handed to every action.
type Context struct {
	Ctx    context.Context
	Method string
	Params map[string]string

	Storage   *storage.Store
	Protected *storage.Store
	Auth      *auth.Service
	Flags     *Flags
	Rules     *rules.Evaluator
	Logger    *slog.Logger

	User  storage.Record
	Token string
	Admin bool
}

// Param returns a captured pattern parameter, or "".
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Log returns the request logger, falling back to the default logger.
func (c *Context) Log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// UserID returns the current user's id, or "" for anonymous requests.
func (c *Context) UserID() string {
	return c.User.ID()
}

func (c *Context) ruleRequest() (*rules.Request, bool) {
	if c.Rules == nil {
		return nil, false
	}
	action, ok := rules.ActionFor(c.Method)
	if !ok {
		return nil, false
	}
	return &rules.Request{
		Action:     action,
		Collection: c.Param("collection"),
		User:       c.User,
		Admin:      c.Admin,
	}, true
}

// CanAccess checks the access rules for this request against a stored
// record and an incoming payload. Either may be nil. Property rules may
// modify both.
func (c *Context) CanAccess(data, newData storage.Record) error {
	req, ok := c.ruleRequest()
	if !ok {
		return nil
	}
	req.Data = data
	req.NewData = newData
	return c.Rules.Check(req)
}

// CanAccessList checks the access rules for a list result.
func (c *Context) CanAccessList(list []storage.Record) error {
	req, ok := c.ruleRequest()
	if !ok {
		return nil
	}
	return c.Rules.CheckList(req, list)
}
