package keypath

import (
	"reflect"
	"testing"
)

func TestToSegments(t *testing.T) {
	tests := []struct {
		name string
		path any
		want []string
	}{
		{"dotted", "a.b.c", []string{"a", "b", "c"}},
		{"brackets", "a[3].b", []string{"a", "3", "b"}},
		{"leading dot", ".a.b", []string{"a", "b"}},
		{"leading bracket", "[0].name", []string{"0", "name"}},
		{"empty", "", nil},
		{"whitespace", "  a . b ", []string{"a", "b"}},
		{"string slice", []string{"a.b", "c"}, []string{"a", "b", "c"}},
		{"nested any", []any{"a", []any{"b", []any{"c[1]"}}, 2}, []string{"a", "b", "c", "1", "2"}},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToSegments(tt.path)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToSegments(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveMatchesManualTraversal(t *testing.T) {
	data := map[string]any{
		"a": []any{
			"zero",
			map[string]any{"b": "one-b"},
			map[string]any{"b": "two-b"},
		},
		"user": map[string]any{"name": "Ada", "tags": []any{"x", "y"}},
	}

	manual := data["a"].([]any)[2].(map[string]any)["b"]
	if got := Resolve(data, "a[2].b"); got != manual {
		t.Errorf("Resolve(a[2].b) = %v, want %v", got, manual)
	}
	if got := Resolve(data, "a.2.b"); got != manual {
		t.Errorf("Resolve(a.2.b) = %v, want %v", got, manual)
	}
	if got := Resolve(data, "user.tags[1]"); got != "y" {
		t.Errorf("Resolve(user.tags[1]) = %v, want y", got)
	}
}

func TestResolveMisses(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": "x"}, "list": []any{1}}
	tests := []struct {
		name string
		root any
		path string
	}{
		{"missing key", data, "a.missing"},
		{"scalar with segments left", data, "a.b.c"},
		{"index out of range", data, "list.5"},
		{"negative index", data, "list.-1"},
		{"non numeric index", data, "list.first"},
		{"scalar root", "text", "a"},
		{"nil root", nil, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.root, tt.path); got != nil {
				t.Errorf("Resolve(%v) = %v, want nil", tt.path, got)
			}
		})
	}
}

func TestResolveEmptyPathReturnsRoot(t *testing.T) {
	data := map[string]any{"a": 1}
	got := Resolve(data, "")
	if !reflect.DeepEqual(got, data) {
		t.Errorf("Resolve(root, \"\") = %v, want root", got)
	}
}

func TestResolveDataFunctions(t *testing.T) {
	calls := 0
	data := map[string]any{
		"now": Func(func() any {
			calls++
			return "tick"
		}),
		"nested": func() any {
			return map[string]any{"deep": func() any { return Func(func() any { return 7 }) }}
		},
	}

	if got := Resolve(data, "now"); got != "tick" {
		t.Errorf("Resolve(now) = %v, want tick", got)
	}
	if got := Resolve(data, "nested.deep"); got != 7 {
		t.Errorf("Resolve(nested.deep) = %v, want 7", got)
	}
	if calls != 1 {
		t.Errorf("function called %d times, want 1", calls)
	}

	disabled := Resolver{AllowFunctions: false}
	if got := disabled.Resolve(data, "now"); !IsFunc(got) {
		t.Errorf("disabled Resolve(now) = %T, want the function itself", got)
	}
	if got := disabled.Resolve(data, "nested.deep"); got != nil {
		t.Errorf("disabled Resolve(nested.deep) = %v, want nil", got)
	}
}

func TestResolveReflectContainers(t *testing.T) {
	type address struct {
		City string `json:"city"`
	}
	type user struct {
		Name      string
		Addresses []address
		Labels    map[string]string
	}
	data := map[string]any{
		"user": &user{
			Name:      "Ada",
			Addresses: []address{{City: "London"}},
			Labels:    map[string]string{"role": "admin"},
		},
	}

	tests := map[string]any{
		"user.Name":                "Ada",
		"user.Addresses[0].city":   "London",
		"user.Addresses.0.City":    "London",
		"user.Labels.role":         "admin",
		"user.Labels.missing":      nil,
		"user.Addresses[1].City":   nil,
		"user.unexported.anything": nil,
	}
	for path, want := range tests {
		if got := Resolve(data, path); got != want {
			t.Errorf("Resolve(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestJoin(t *testing.T) {
	if got := Join("outer", "", ".inner.", "leaf"); got != "outer.inner.leaf" {
		t.Errorf("Join = %q, want outer.inner.leaf", got)
	}
}
