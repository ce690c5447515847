// Package query implements the where= filter language and the list options
// (sortBy, offset, pageSize, distinct, select, load) of the data service.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sipico/practice-server/internal/storage"
)

// InvalidWhereMessage is the client-facing message for any where= parse failure.
const InvalidWhereMessage = "Could not parse WHERE clause, check your syntax."

// ErrInvalidWhere is returned by ParseWhere. The wrapped text says what failed.
var ErrInvalidWhere = errors.New("invalid where clause")

var (
	clausePattern = regexp.MustCompile(`(?i)^(.+?)(<=|<|>=|>| like | in |=)(.+?)$`)
	joinPattern   = regexp.MustCompile(`(?i) (and|or) `)
	listPattern   = regexp.MustCompile(`^\((.*)\)$`)
)

// Operator is a comparison supported in a where clause.
type Operator string

// Supported operators.
const (
	OpEq   Operator = "="
	OpLt   Operator = "<"
	OpLte  Operator = "<="
	OpGt   Operator = ">"
	OpGte  Operator = ">="
	OpLike Operator = "like"
	OpIn   Operator = "in"
)

// Clause is a single compiled `prop OP value` test.
type Clause struct {
	Prop  string
	Op    Operator
	Value any
}

// Filter is a compiled where= expression. Clauses are joined either all by
// "and" or all by "or".
type Filter struct {
	Clauses []Clause
	Or      bool
}

// ParseWhere compiles a where= expression. Literal values are parsed as JSON
// once, here, so matching never re-parses input.
func ParseWhere(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidWhere)
	}

	f := &Filter{}
	var hasAnd, hasOr bool
	for _, m := range joinPattern.FindAllStringSubmatch(expr, -1) {
		if strings.EqualFold(m[1], "and") {
			hasAnd = true
		} else {
			hasOr = true
		}
	}
	if hasAnd && hasOr {
		return nil, fmt.Errorf("%w: mixing and/or is not supported", ErrInvalidWhere)
	}
	f.Or = hasOr

	for _, part := range joinPattern.Split(expr, -1) {
		c, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, c)
	}
	return f, nil
}

func parseClause(s string) (Clause, error) {
	m := clausePattern.FindStringSubmatch(s)
	if m == nil {
		return Clause{}, fmt.Errorf("%w: no operator in %q", ErrInvalidWhere, s)
	}

	prop := strings.TrimSpace(m[1])
	op := Operator(strings.ToLower(strings.TrimSpace(m[2])))
	raw := strings.TrimSpace(m[3])
	if prop == "" {
		return Clause{}, fmt.Errorf("%w: missing property in %q", ErrInvalidWhere, s)
	}

	if op == OpIn {
		lm := listPattern.FindStringSubmatch(raw)
		if lm == nil {
			return Clause{}, fmt.Errorf("%w: in expects a parenthesized list", ErrInvalidWhere)
		}
		raw = "[" + lm[1] + "]"
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return Clause{}, fmt.Errorf("%w: bad literal %q: %v", ErrInvalidWhere, raw, err)
	}
	return Clause{Prop: prop, Op: op, Value: value}, nil
}

// Match reports whether the record satisfies the filter.
func (f *Filter) Match(r storage.Record) bool {
	if f.Or {
		for _, c := range f.Clauses {
			if c.Match(r) {
				return true
			}
		}
		return false
	}
	for _, c := range f.Clauses {
		if !c.Match(r) {
			return false
		}
	}
	return true
}

// Apply returns the records that satisfy the filter, in order.
func (f *Filter) Apply(records []storage.Record) []storage.Record {
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Match reports whether the record satisfies this clause. A missing field
// equals null and fails every other operator.
func (c Clause) Match(r storage.Record) bool {
	got, present := r[c.Prop]

	switch c.Op {
	case OpEq:
		return storage.LooseEqual(got, c.Value)
	case OpLt, OpLte, OpGt, OpGte:
		if !present {
			return false
		}
		cmp, ok := compareLoose(got, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpLt:
			return cmp < 0
		case OpLte:
			return cmp <= 0
		case OpGt:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case OpLike:
		s, ok := got.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(storage.String(c.Value)))
	case OpIn:
		if !present {
			return false
		}
		items, _ := c.Value.([]any)
		for _, item := range items {
			if storage.StrictEqual(got, item) {
				return true
			}
		}
		return false
	}
	return false
}

// compareLoose orders two values: strings lexically, anything else numerically.
// The second result is false when either side has no numeric reading.
func compareLoose(a, b any) (int, bool) {
	as, ok1 := a.(string)
	bs, ok2 := b.(string)
	if ok1 && ok2 {
		return strings.Compare(as, bs), true
	}
	x, ok1 := storage.ToNumber(a)
	y, ok2 := storage.ToNumber(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case x < y:
		return -1, true
	case x > y:
		return 1, true
	default:
		return 0, true
	}
}
