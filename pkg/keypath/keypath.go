// Package keypath parses dotted key paths and resolves them against nested data.
//
// Paths look like "user.addresses[0].city". Bracketed indices are normalized
// to dot segments, so "a[2].b" and "a.2.b" are the same path.
package keypath

import (
	"reflect"
	"strconv"
	"strings"
)

// Func is a lazily evaluated data value. Resolution calls it with no
// arguments and continues from the result.
type Func func() any

// ToSegments normalizes a path into ordered segments.
//
// path may be a string, a []string, or a []any whose elements are strings,
// numbers, or nested slices; nested slices are flattened recursively.
func ToSegments(path any) []string {
	var out []string
	appendSegments(&out, path)
	return out
}

func appendSegments(out *[]string, path any) {
	switch p := path.(type) {
	case nil:
	case string:
		*out = append(*out, splitString(p)...)
	case []string:
		for _, s := range p {
			*out = append(*out, splitString(s)...)
		}
	case []any:
		for _, item := range p {
			appendSegments(out, item)
		}
	case int:
		*out = append(*out, strconv.Itoa(p))
	case fmtStringer:
		*out = append(*out, splitString(p.String())...)
	}
}

type fmtStringer interface{ String() string }

func splitString(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if strings.ContainsAny(path, "[]") {
		path = strings.ReplaceAll(path, "[", ".")
		path = strings.ReplaceAll(path, "]", "")
	}
	path = strings.TrimPrefix(path, ".")
	parts := strings.Split(path, ".")
	segments := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// Join composes segments back into a dotted path.
func Join(segments ...string) string {
	nonEmpty := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, ". "); s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// Resolver resolves paths against nested values.
type Resolver struct {
	// AllowFunctions enables calling Func values met along the path.
	AllowFunctions bool
}

// Resolve resolves path against root with data functions enabled.
func Resolve(root any, path any) any {
	return Resolver{AllowFunctions: true}.Resolve(root, path)
}

// Resolve walks path through root. It returns nil for any miss and never
// panics on malformed data.
//
// With AllowFunctions a callable leaf returns its result (recursively);
// without it the callable itself is returned, and a callable in the middle of
// the path ends traversal with nil.
func (r Resolver) Resolve(root any, path any) any {
	current := r.unwrap(root)
	if !isContainer(current) {
		return nil
	}
	for _, segment := range ToSegments(path) {
		current = r.unwrap(current)
		if !isContainer(current) {
			return nil
		}
		next, ok := child(current, segment)
		if !ok {
			return nil
		}
		current = next
	}
	return r.unwrap(current)
}

// Call invokes v when it is a data function and returns its result.
func Call(v any) (any, bool) {
	switch fn := v.(type) {
	case Func:
		if fn == nil {
			return nil, true
		}
		return fn(), true
	case func() any:
		if fn == nil {
			return nil, true
		}
		return fn(), true
	}
	return v, false
}

// IsFunc reports whether v is a data function.
func IsFunc(v any) bool {
	switch v.(type) {
	case Func, func() any:
		return true
	}
	return false
}

func (r Resolver) unwrap(v any) any {
	if !r.AllowFunctions {
		return v
	}
	// Bounded so a function returning itself cannot spin forever.
	for i := 0; i < 32; i++ {
		result, called := Call(v)
		if !called {
			return v
		}
		v = result
	}
	return nil
}

// IsContainer reports whether v can be traversed by a path segment.
func IsContainer(v any) bool {
	return isContainer(v)
}

func isContainer(v any) bool {
	switch v.(type) {
	case nil:
		return false
	case map[string]any, []any:
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func child(container any, segment string) (any, bool) {
	switch c := container.(type) {
	case map[string]any:
		v, ok := c[segment]
		return v, ok
	case []any:
		i, ok := index(segment, len(c))
		if !ok {
			return nil, false
		}
		return c[i], true
	}

	rv := reflect.ValueOf(container)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		v := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}
		return v.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := index(segment, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Struct:
		return structField(rv, segment)
	}
	return nil, false
}

func index(segment string, length int) (int, bool) {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

func structField(rv reflect.Value, name string) (any, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if f.Name == name || (tag != "" && tag != "-" && tag == name) {
			return rv.Field(i).Interface(), true
		}
	}
	return nil, false
}
