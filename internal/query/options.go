package query

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sipico/practice-server/internal/storage"
)

// DefaultPageSize applies when pageSize is present but not a positive number.
const DefaultPageSize = 10

// SortKey is one entry of a sortBy list.
type SortKey struct {
	Prop string
	Desc bool
}

// ParseSort parses "prop[ desc],prop2" into sort keys. Any second word marks
// the key as descending.
func ParseSort(spec string) []SortKey {
	var keys []SortKey
	for _, part := range splitList(spec) {
		words := strings.Fields(part)
		if len(words) == 0 {
			continue
		}
		keys = append(keys, SortKey{Prop: words[0], Desc: len(words) > 1})
	}
	return keys
}

// Sort orders records in place. The first key has the highest priority.
// Two numbers compare numerically, two strings by locale collation.
// Records whose values are missing or of mixed types go after the others.
func Sort(records []storage.Record, keys []SortKey) {
	col := collate.New(language.Und)

	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		slices.SortStableFunc(records, func(a, b storage.Record) int {
			av, aok := a[k.Prop]
			bv, bok := b[k.Prop]
			return compareSort(col, av, aok, bv, bok, k.Desc)
		})
	}
}

func compareSort(col *collate.Collator, a any, aok bool, b any, bok bool, desc bool) int {
	sign := 1
	if desc {
		sign = -1
	}

	if storage.IsNumber(a) && storage.IsNumber(b) {
		x, _ := storage.ToNumber(a)
		y, _ := storage.ToNumber(b)
		switch {
		case x < y:
			return -sign
		case x > y:
			return sign
		}
		return 0
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return col.CompareString(as, bs) * sign
	}

	// Comparable values sort before anything else regardless of direction.
	aComparable := aok && (aStr || storage.IsNumber(a))
	bComparable := bok && (bStr || storage.IsNumber(b))
	switch {
	case aComparable && !bComparable:
		return -1
	case !aComparable && bComparable:
		return 1
	}
	return 0
}

// Offset drops the first n records. Negative n keeps the last -n records.
// A non-numeric value means zero.
func Offset(records []storage.Record, raw string) []storage.Record {
	n := int(parseNumber(raw))
	size := len(records)
	if n < 0 {
		n += size
		if n < 0 {
			n = 0
		}
	}
	if n > size {
		n = size
	}
	return records[n:]
}

// Page keeps at most pageSize records. A non-numeric or zero size means
// DefaultPageSize. A negative size drops that many records from the end.
func Page(records []storage.Record, raw string) []storage.Record {
	n := int(parseNumber(raw))
	if n == 0 {
		n = DefaultPageSize
	}
	size := len(records)
	if n < 0 {
		n += size
		if n < 0 {
			n = 0
		}
	}
	if n > size {
		n = size
	}
	return records[:n]
}

// Distinct keeps the first record for each combination of the given props.
func Distinct(records []storage.Record, spec string) []storage.Record {
	props := splitList(spec)
	if len(props) == 0 {
		return records
	}

	seen := make(map[string]struct{}, len(records))
	out := make([]storage.Record, 0, len(records))
	for _, r := range records {
		parts := make([]string, len(props))
		for i, p := range props {
			parts[i] = storage.String(r[p])
		}
		key := strings.Join(parts, "::")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Select projects a record onto the given props. Absent props are omitted.
func Select(r storage.Record, spec string) storage.Record {
	props := splitList(spec)
	out := make(storage.Record, len(props))
	for _, p := range props {
		if v, ok := r[p]; ok {
			out[p] = v
		}
	}
	return out
}

// Relation describes one load= entry: the record's IDField value is looked
// up in Collection and embedded under Prop.
type Relation struct {
	Prop       string
	IDField    string
	Collection string
}

// ParseLoad parses "prop=idField:collection,..." into relations.
func ParseLoad(spec string) ([]Relation, error) {
	var out []Relation
	for _, part := range splitList(spec) {
		prop, rel, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid load entry %q", part)
		}
		idField, collection, ok := strings.Cut(rel, ":")
		if !ok || prop == "" || idField == "" || collection == "" {
			return nil, fmt.Errorf("invalid load entry %q", part)
		}
		out = append(out, Relation{Prop: prop, IDField: idField, Collection: collection})
	}
	return out, nil
}

func splitList(spec string) []string {
	var out []string
	for _, p := range strings.Split(spec, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseNumber reads a query value as a number, truncating fractions.
// Anything unparseable reads as zero.
func parseNumber(raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) {
		return 0
	}
	f = math.Max(math.Min(f, math.MaxInt32), math.MinInt32)
	if f > 0 {
		return float64(int64(f))
	}
	return -float64(int64(-f))
}
