package storage

import "testing"

func TestLooseEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same string", "a", "a", true},
		{"different string", "a", "A", false},
		{"number and numeric string", float64(3), "3", true},
		{"int64 and float", int64(5), float64(5), true},
		{"bool and number", true, float64(1), true},
		{"nil and nil", nil, nil, true},
		{"nil and zero", nil, float64(0), false},
		{"non-numeric string", "abc", float64(0), false},
		{"objects never equal", map[string]any{}, map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooseEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("LooseEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestStrictEqual(t *testing.T) {
	if !StrictEqual(float64(2), int64(2)) {
		t.Error("StrictEqual(2.0, int64 2) = false, want true")
	}
	if StrictEqual("2", float64(2)) {
		t.Error("StrictEqual(\"2\", 2) = true, want false")
	}
	if !StrictEqual(nil, nil) {
		t.Error("StrictEqual(nil, nil) = false, want true")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(1.5), "1.5"},
		{float64(10), "10"},
		{int64(7), "7"},
		{true, "true"},
		{[]any{"a", float64(1)}, "a,1"},
		{map[string]any{}, "[object Object]"},
	}
	for _, tt := range tests {
		if got := String(tt.in); got != tt.want {
			t.Errorf("String(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	truthy := []any{true, "x", float64(1), int64(2), map[string]any{}, []any{}}
	falsy := []any{false, "", float64(0), nil}

	for _, v := range truthy {
		if !Truthy(v) {
			t.Errorf("Truthy(%v) = false, want true", v)
		}
	}
	for _, v := range falsy {
		if Truthy(v) {
			t.Errorf("Truthy(%v) = true, want false", v)
		}
	}
}
