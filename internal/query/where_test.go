package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipico/practice-server/internal/storage"
)

func records() []storage.Record {
	return []storage.Record{
		{"_id": "1", "name": "Alpha", "val": float64(10), "tag": "x"},
		{"_id": "2", "name": "beta", "val": float64(20), "tag": "y"},
		{"_id": "3", "name": "Gamma", "val": "30", "tag": "x"},
		{"_id": "4", "name": "delta", "tag": nil},
		{"_id": "5", "name": float64(5), "val": true},
	}
}

func ids(rs []storage.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID()
	}
	return out
}

func TestParseWhere_Operators(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{`tag="x"`, []string{"1", "3"}},
		{`val=30`, []string{"3"}},
		{`val="10"`, []string{"1"}},
		{`val=1`, []string{"5"}},
		{`val=null`, []string{"4"}},
		{`tag=null`, []string{"4", "5"}},
		{`val<20`, []string{"1", "5"}},
		{`val<=20`, []string{"1", "2", "5"}},
		{`val>20`, []string{"3"}},
		{`val>=20`, []string{"2", "3"}},
		{`name>"b"`, []string{"2", "4"}},
		{`name LIKE "ALP"`, []string{"1"}},
		{`name like "ta"`, []string{"2", "4"}},
		{`_id in ("1","3")`, []string{"1", "3"}},
		{`val IN (10, 30)`, []string{"1"}},
		{`tag="x" and val>15`, []string{"3"}},
		{`tag="y" OR val=10`, []string{"1", "2"}},
		{`name = "Alpha"`, []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := ParseWhere(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(f.Apply(records())))
		})
	}
}

func TestParseWhere_LikeIgnoresNonStrings(t *testing.T) {
	f, err := ParseWhere(`name like "5"`)
	require.NoError(t, err)
	assert.Empty(t, f.Apply(records()))
}

func TestParseWhere_ValueContainingEquals(t *testing.T) {
	f, err := ParseWhere(`q="a=b"`)
	require.NoError(t, err)
	require.Len(t, f.Clauses, 1)
	assert.Equal(t, "q", f.Clauses[0].Prop)
	assert.Equal(t, "a=b", f.Clauses[0].Value)
}

func TestParseWhere_Errors(t *testing.T) {
	bad := []string{
		"",
		"name",
		`name=abc`,
		`tag="x" and val=1 or val=2`,
		`_id in "1"`,
		`=5`,
	}

	for _, expr := range bad {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseWhere(expr)
			require.ErrorIs(t, err, ErrInvalidWhere)
		})
	}
}
