package rules

import (
	"errors"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/storage"
)

// Role is a member of a role-list rule.
type Role string

// Known roles.
const (
	RoleGuest Role = "Guest"
	RoleUser  Role = "User"
	RoleOwner Role = "Owner"
)

// Func is a rule implemented in Go and registered on the Evaluator.
type Func func(req *Request) bool

// Policy is a compiled rule. The set of implementations is closed.
type Policy interface {
	eval(e *env) (bool, error)
}

// env is what a policy sees while it is being evaluated.
type env struct {
	req    *Request
	store  Getter
	custom func(name string) (Func, bool)
	// prop is set while evaluating a property rule.
	prop string
}

func (e *env) inProp() bool { return e.prop != "" }

// Allow is a constant rule.
type Allow bool

func (p Allow) eval(*env) (bool, error) { return bool(p), nil }

// RoleIn checks the current user against a list of roles.
type RoleIn []Role

func (p RoleIn) has(r Role) bool {
	for _, x := range p {
		if x == r {
			return true
		}
	}
	return false
}

func (p RoleIn) eval(e *env) (bool, error) {
	switch {
	case p.has(RoleGuest):
		return true, nil
	case e.req.User == nil && !e.req.Admin:
		if e.inProp() {
			return false, nil
		}
		return false, apperr.Authorization()
	case p.has(RoleUser):
		return true, nil
	case e.req.User != nil && p.has(RoleOwner):
		return isOwner(e.req.User, e.req.Data), nil
	}
	return false, nil
}

// IsOwner passes when the current user owns the stored record.
type IsOwner struct{}

func (IsOwner) eval(e *env) (bool, error) {
	return isOwner(e.req.User, e.req.Data), nil
}

// OwnerOf passes when the current user owns the record in Collection whose
// id is stored in Field of the stored record.
type OwnerOf struct {
	Collection string
	Field      string
}

func (p OwnerOf) eval(e *env) (bool, error) {
	if e.req.User == nil || e.req.Data == nil || e.store == nil {
		return false, nil
	}
	id, ok := e.req.Data[p.Field].(string)
	if !ok {
		return false, nil
	}
	related, err := e.store.Get(p.Collection, id)
	if err != nil {
		if errors.Is(err, storage.ErrCollectionNotFound) || errors.Is(err, storage.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return isOwner(e.req.User, related), nil
}

// PropEquals passes when a property of the stored record loosely equals Value.
type PropEquals struct {
	Prop  string
	Value any
}

func (p PropEquals) eval(e *env) (bool, error) {
	var got any
	if e.req.Data != nil {
		got = e.req.Data[p.Prop]
	}
	return storage.LooseEqual(got, p.Value), nil
}

// Any passes when at least one of its policies passes.
type Any []Policy

func (p Any) eval(e *env) (bool, error) {
	for _, sub := range p {
		ok, err := sub.eval(e)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// KeepExisting copies the stored value of the property over the incoming one.
// It is meant for property rules.
type KeepExisting struct{}

func (KeepExisting) eval(e *env) (bool, error) {
	if !e.inProp() || e.req.NewData == nil {
		return true, nil
	}
	var v any
	if e.req.Data != nil {
		v = e.req.Data[e.prop]
	}
	e.req.NewData[e.prop] = storage.DeepCopy(v)
	return storage.Truthy(v), nil
}

// Force overwrites the incoming property with a fixed value.
// It is meant for property rules.
type Force struct {
	Value any
}

func (p Force) eval(e *env) (bool, error) {
	if !e.inProp() || e.req.NewData == nil {
		return true, nil
	}
	e.req.NewData[e.prop] = storage.DeepCopy(p.Value)
	return storage.Truthy(p.Value), nil
}

// Custom refers to a Func registered on the Evaluator by name.
// Unregistered names deny.
type Custom struct {
	Name string
}

func (p Custom) eval(e *env) (bool, error) {
	if e.custom == nil {
		return false, nil
	}
	fn, ok := e.custom(p.Name)
	if !ok {
		return false, nil
	}
	return fn(e.req), nil
}

func isOwner(user, data storage.Record) bool {
	if user == nil || data == nil {
		return false
	}
	return storage.LooseEqual(user[storage.FieldID], data[storage.FieldOwnerID])
}
