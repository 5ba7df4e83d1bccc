package dumaos

import (
	"reflect"
	"testing"
)

func TestUnwrapTreeShapes(t *testing.T) {
	cases := map[string]struct {
		in   any
		want map[string]any
	}{
		"wrapped string":    {in: []any{`{"a":1}`}, want: map[string]any{"a": float64(1)}},
		"bare string":       {in: `{"a":1}`, want: map[string]any{"a": float64(1)}},
		"decoded mapping":   {in: map[string]any{"a": float64(1)}, want: map[string]any{"a": float64(1)}},
		"wrapped junk":      {in: []any{"not json"}, want: map[string]any{}},
		"empty sequence":    {in: []any{}, want: map[string]any{}},
		"nil":               {in: nil, want: map[string]any{}},
		"number":            {in: float64(42), want: map[string]any{}},
		"string of number":  {in: "42", want: map[string]any{}},
		"wrapped non-map":   {in: []any{float64(3)}, want: map[string]any{}},
		"null json string":  {in: "null", want: map[string]any{}},
		"sequence of trees": {in: []any{map[string]any{"b": "x"}, "ignored"}, want: map[string]any{"b": "x"}},
	}
	for name, tc := range cases {
		got := UnwrapTree(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: expected %v got %v", name, tc.want, got)
		}
	}
}

func TestUnwrapTreeIdempotent(t *testing.T) {
	first := UnwrapTree([]any{`{"a":1,"nested":{"b":2}}`})
	second := UnwrapTree(any(first))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected fixed point for mapping input, got %v then %v", first, second)
	}
}
