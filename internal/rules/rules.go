// Package rules decides whether a request may act on a collection and strips
// properties the caller may not read or write.
package rules

import (
	"log/slog"
	"sync"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/metrics"
	"github.com/sipico/practice-server/internal/storage"
)

// Getter loads related records for ownerOf rules.
type Getter interface {
	Get(collection, id string) (storage.Record, error)
}

// Request is one access check. Check may delete properties from NewData
// (create and update) or from Data (read).
type Request struct {
	Action     Action
	Collection string
	User       storage.Record
	Admin      bool
	// Data is the stored record, nil for create and list reads.
	Data storage.Record
	// NewData is the client payload, nil for read and delete.
	NewData storage.Record
}

// Evaluator applies a compiled rule Set.
type Evaluator struct {
	set    *Set
	store  Getter
	logger *slog.Logger

	mu     sync.RWMutex
	custom map[string]Func
}

// New creates an Evaluator. store is used by ownerOf rules and may be nil.
func New(set *Set, store Getter, logger *slog.Logger) *Evaluator {
	if set == nil {
		set = MustCompile(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		set:    set,
		store:  store,
		logger: logger,
		custom: make(map[string]Func),
	}
}

// Register makes fn available to rules of the form {custom: name}.
func (e *Evaluator) Register(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom[name] = fn
}

func (e *Evaluator) lookup(name string) (Func, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.custom[name]
	return fn, ok
}

// resolve picks the top-level rule and the property rules for a request.
// Narrower entries replace broader ones; missing entries never do.
func (s *Set) resolve(action Action, collection string, data storage.Record) (Policy, []propRule) {
	var rule Policy = Allow(true)
	if p, ok := s.global[action]; ok {
		rule = p
	}

	c, ok := s.collections[collection]
	if !ok {
		return rule, nil
	}

	if p, ok := c.actions[action]; ok {
		rule = p
	}
	props := c.all[action]

	if id := data.ID(); id != "" {
		if r, ok := c.records[id]; ok {
			if p, ok := r.actions[action]; ok {
				rule = p
			}
			if len(r.props[action]) > 0 {
				props = r.props[action]
			}
		}
	}
	return rule, props
}

// Check enforces the top-level rule and applies property rules.
func (e *Evaluator) Check(req *Request) error {
	rule, props := e.set.resolve(req.Action, req.Collection, req.Data)
	ev := e.env(req)

	if err := e.checkTop(ev, rule); err != nil {
		return err
	}
	return e.applyProps(ev, props)
}

// CheckList enforces the top-level rule once for a list read and applies
// property rules to every record in it.
func (e *Evaluator) CheckList(req *Request, list []storage.Record) error {
	top := *req
	top.Data = nil
	rule, props := e.set.resolve(top.Action, top.Collection, nil)

	if err := e.checkTop(e.env(&top), rule); err != nil {
		return err
	}
	if len(props) == 0 {
		return nil
	}

	for _, r := range list {
		item := top
		item.Data = r
		if err := e.applyProps(e.env(&item), props); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) env(req *Request) *env {
	return &env{req: req, store: e.store, custom: e.lookup}
}

func (e *Evaluator) checkTop(ev *env, rule Policy) error {
	req := ev.req
	ok, err := rule.eval(ev)
	if err != nil {
		metrics.RecordRuleDenial(req.Collection, string(req.Action))
		return err
	}
	if !ok && !req.Admin {
		metrics.RecordRuleDenial(req.Collection, string(req.Action))
		e.logger.Debug("access denied by rule",
			"collection", req.Collection,
			"action", req.Action,
		)
		return apperr.Credential()
	}
	return nil
}

func (e *Evaluator) applyProps(ev *env, props []propRule) error {
	req := ev.req
	for _, pr := range props {
		ev.prop = pr.prop
		ok, err := pr.policy.eval(ev)
		ev.prop = ""
		if err != nil {
			return err
		}
		if ok {
			continue
		}

		switch req.Action {
		case ActionCreate, ActionUpdate:
			if req.NewData != nil {
				delete(req.NewData, pr.prop)
			}
		case ActionRead:
			if req.Data != nil {
				delete(req.Data, pr.prop)
			}
		}
	}
	return nil
}
