package resource

import (
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/jp"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

// JSONStore is a free-form nested document tree addressed by path tokens.
// It has no access rules and no system fields other than _id on POST.
type JSONStore struct {
	mu    sync.Mutex
	root  map[string]any
	newID func() string
}

// NewJSONStore creates a store over the given collections. root is copied.
func NewJSONStore(root map[string]any) *JSONStore {
	s := &JSONStore{
		root:  make(map[string]any, len(root)),
		newID: func() string { return uuid.New().String() },
	}
	for k, v := range root {
		s.root[k] = storage.DeepCopy(v)
	}
	return s
}

// Service returns the jsonstore service bound to s.
func (s *JSONStore) Service() *service.Service {
	svc := service.New()
	svc.Get(":collection", s.get)
	svc.Post(":collection", s.post)
	svc.Put(":collection", s.put)
	svc.Patch(":collection", s.patch)
	svc.Delete(":collection", s.remove)
	return svc
}

// path builds a child-only expression so tokens are never parsed as JSONPath.
func path(collection string, tokens []string) jp.Expr {
	x := jp.C(collection)
	for _, t := range tokens {
		x = x.C(t)
	}
	return x
}

func (s *JSONStore) lookup(x jp.Expr) (any, bool) {
	found := x.Get(s.root)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

func (s *JSONStore) get(ctx *service.Context, tokens []string, _ service.Query, _ any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookup(path(ctx.Param("collection"), tokens))
	if !ok {
		return service.NoContent, nil
	}
	return storage.DeepCopy(v), nil
}

func (s *JSONStore) post(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	data, ok := storage.AsRecord(body)
	if body != nil && !ok {
		return nil, apperr.Request()
	}
	ctx.Log().Debug("jsonstore post", "collection", ctx.Param("collection"), "depth", len(tokens))

	s.mu.Lock()
	defer s.mu.Unlock()

	x := path(ctx.Param("collection"), tokens)
	if _, exists := s.lookup(x); !exists {
		if err := x.Set(s.root, map[string]any{}); err != nil {
			return nil, apperr.Request(err.Error())
		}
	}
	parent, ok := x.First(s.root).(map[string]any)
	if !ok {
		return nil, apperr.Request()
	}

	id := s.newID()
	entry := make(map[string]any, len(data)+1)
	maps.Copy(entry, storage.Record(data).Clone())
	entry[storage.FieldID] = id
	parent[id] = entry

	return storage.DeepCopy(entry), nil
}

func (s *JSONStore) put(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x := path(ctx.Param("collection"), tokens)
	if _, ok := s.lookup(x); !ok {
		return service.NoContent, nil
	}
	if err := x.Set(s.root, storage.DeepCopy(body)); err != nil {
		return nil, apperr.Request(err.Error())
	}
	return storage.DeepCopy(body), nil
}

func (s *JSONStore) patch(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lookup(path(ctx.Param("collection"), tokens))
	if !ok {
		return service.NoContent, nil
	}
	if target, isObject := v.(map[string]any); isObject {
		if data, ok := storage.AsRecord(body); ok {
			for k, val := range data {
				target[k] = storage.DeepCopy(val)
			}
		}
	}
	return storage.DeepCopy(v), nil
}

// remove deletes the addressed value and returns it, or null when any
// segment of the path is missing.
func (s *JSONStore) remove(ctx *service.Context, tokens []string, _ service.Query, _ any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append([]string{ctx.Param("collection")}, tokens...)
	parent := any(s.root)
	if len(all) > 1 {
		var ok bool
		if parent, ok = s.lookup(path(all[0], all[1:len(all)-1])); !ok {
			return nil, nil
		}
	}

	m, ok := parent.(map[string]any)
	if !ok {
		return nil, nil
	}
	key := all[len(all)-1]
	removed, ok := m[key]
	if !ok {
		return nil, nil
	}
	delete(m, key)

	ctx.Log().Debug("jsonstore delete", "path", all)
	return removed, nil
}
