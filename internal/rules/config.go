package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Action is a rule key derived from the HTTP method.
type Action string

// Rule actions.
const (
	ActionRead   Action = ".read"
	ActionCreate Action = ".create"
	ActionUpdate Action = ".update"
	ActionDelete Action = ".delete"
)

// AllCollections is the key of the rules that apply to every collection.
// Inside a collection it holds the property rules.
const AllCollections = "*"

// ActionFor maps an HTTP method to its rule action.
func ActionFor(method string) (Action, bool) {
	switch strings.ToUpper(method) {
	case "GET":
		return ActionRead, true
	case "POST":
		return ActionCreate, true
	case "PUT", "PATCH":
		return ActionUpdate, true
	case "DELETE":
		return ActionDelete, true
	}
	return "", false
}

func parseAction(key string) (Action, error) {
	switch a := Action(key); a {
	case ActionRead, ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", key)
}

// Config is the declarative rule set, as decoded from YAML or JSON:
//
//	collection:
//	  .action: <policy>
//	  "*":
//	    prop: {.action: <policy>}
//	  <recordId>:
//	    .action: <policy>
//	    prop: {.action: <policy>}
//
// A policy is true/false, a role list ([Guest, User, Owner]) or a single-key
// map: isOwner, ownerOf {collection, field}, propEquals {prop, value},
// any [...], keep, force <value> or custom <name>.
type Config map[string]map[string]any

type propRule struct {
	prop   string
	policy Policy
}

type entryRules struct {
	actions map[Action]Policy
	props   map[Action][]propRule
}

type collectionRules struct {
	entryRules
	all     map[Action][]propRule
	records map[string]*entryRules
}

// Set is a compiled rule set.
type Set struct {
	global      map[Action]Policy
	collections map[string]*collectionRules
}

// DefaultGlobal returns the rules used for every collection when the config
// has no "*" entry.
func DefaultGlobal() map[Action]Policy {
	return map[Action]Policy{
		ActionCreate: RoleIn{RoleUser},
		ActionUpdate: RoleIn{RoleOwner},
		ActionDelete: RoleIn{RoleOwner},
	}
}

// Compile turns a Config into a Set. A "*" entry replaces the default
// global rules entirely.
func Compile(cfg Config) (*Set, error) {
	s := &Set{
		global:      DefaultGlobal(),
		collections: make(map[string]*collectionRules),
	}

	if raw, ok := cfg[AllCollections]; ok {
		s.global = make(map[Action]Policy)
		for key, v := range raw {
			if !strings.HasPrefix(key, ".") {
				continue
			}
			if err := addAction(s.global, key, v); err != nil {
				return nil, fmt.Errorf("rules %q: %w", AllCollections, err)
			}
		}
	}

	for name, raw := range cfg {
		if name == AllCollections {
			continue
		}
		c, err := compileCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("rules %q: %w", name, err)
		}
		s.collections[name] = c
	}

	return s, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(cfg Config) *Set {
	s, err := Compile(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func compileCollection(raw map[string]any) (*collectionRules, error) {
	c := &collectionRules{
		entryRules: entryRules{actions: map[Action]Policy{}, props: map[Action][]propRule{}},
		all:        map[Action][]propRule{},
		records:    map[string]*entryRules{},
	}

	for _, key := range sortedKeys(raw) {
		v := raw[key]
		switch {
		case strings.HasPrefix(key, "."):
			if err := addAction(c.actions, key, v); err != nil {
				return nil, err
			}
		case key == AllCollections:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%q must be a map of property rules", key)
			}
			for _, prop := range sortedKeys(m) {
				if err := addPropRules(c.all, prop, m[prop]); err != nil {
					return nil, err
				}
			}
		default:
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record %q: rules must be a map", key)
			}
			e, err := compileEntry(m)
			if err != nil {
				return nil, fmt.Errorf("record %q: %w", key, err)
			}
			c.records[key] = e
		}
	}
	return c, nil
}

func compileEntry(raw map[string]any) (*entryRules, error) {
	e := &entryRules{actions: map[Action]Policy{}, props: map[Action][]propRule{}}
	for _, key := range sortedKeys(raw) {
		if strings.HasPrefix(key, ".") {
			if err := addAction(e.actions, key, raw[key]); err != nil {
				return nil, err
			}
			continue
		}
		if err := addPropRules(e.props, key, raw[key]); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func addAction(dst map[Action]Policy, key string, v any) error {
	a, err := parseAction(key)
	if err != nil {
		return err
	}
	p, err := ParsePolicy(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if p != nil {
		dst[a] = p
	}
	return nil
}

func addPropRules(dst map[Action][]propRule, prop string, v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("property %q: rules must be a map", prop)
	}
	for _, key := range sortedKeys(m) {
		a, err := parseAction(key)
		if err != nil {
			return fmt.Errorf("property %q: %w", prop, err)
		}
		p, err := ParsePolicy(m[key])
		if err != nil {
			return fmt.Errorf("property %q %s: %w", prop, key, err)
		}
		if p != nil {
			dst[a] = append(dst[a], propRule{prop: prop, policy: p})
		}
	}
	return nil
}

// ParsePolicy compiles a single policy value. Nil and empty role lists
// compile to a nil Policy, which never overrides a broader rule.
func ParsePolicy(v any) (Policy, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return Allow(t), nil
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		roles := make(RoleIn, 0, len(t))
		for _, r := range t {
			s, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("role list entries must be strings, got %T", r)
			}
			roles = append(roles, Role(s))
		}
		return roles, nil
	case string:
		return nil, fmt.Errorf("expression rules are not supported: %q", t)
	case map[string]any:
		return parseStructured(t)
	}
	return nil, fmt.Errorf("unsupported rule type %T", v)
}

func parseStructured(m map[string]any) (Policy, error) {
	if len(m) != 1 {
		return nil, fmt.Errorf("structured rule must have exactly one key, got %d", len(m))
	}

	for key, arg := range m {
		switch key {
		case "isOwner":
			if b, ok := arg.(bool); !ok || !b {
				return nil, fmt.Errorf("isOwner must be true")
			}
			return IsOwner{}, nil
		case "ownerOf":
			args, ok := arg.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ownerOf needs {collection, field}")
			}
			collection, _ := args["collection"].(string)
			field, _ := args["field"].(string)
			if collection == "" || field == "" {
				return nil, fmt.Errorf("ownerOf needs {collection, field}")
			}
			return OwnerOf{Collection: collection, Field: field}, nil
		case "propEquals":
			args, ok := arg.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("propEquals needs {prop, value}")
			}
			prop, _ := args["prop"].(string)
			if prop == "" {
				return nil, fmt.Errorf("propEquals needs {prop, value}")
			}
			return PropEquals{Prop: prop, Value: args["value"]}, nil
		case "any":
			list, ok := arg.([]any)
			if !ok {
				return nil, fmt.Errorf("any needs a list of rules")
			}
			var out Any
			for _, item := range list {
				p, err := ParsePolicy(item)
				if err != nil {
					return nil, fmt.Errorf("any: %w", err)
				}
				if p != nil {
					out = append(out, p)
				}
			}
			return out, nil
		case "keep":
			if b, ok := arg.(bool); !ok || !b {
				return nil, fmt.Errorf("keep must be true")
			}
			return KeepExisting{}, nil
		case "force":
			return Force{Value: arg}, nil
		case "custom":
			name, ok := arg.(string)
			if !ok || name == "" {
				return nil, fmt.Errorf("custom needs a rule name")
			}
			return Custom{Name: name}, nil
		default:
			return nil, fmt.Errorf("unknown rule %q", key)
		}
	}
	return nil, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
