// Package interp substitutes variable tokens embedded in strings and nested data.
//
// Three token forms are recognized:
//
//	${user.name}     %{user.name}     ❮user.name❯
//
// A token may name a data source inline, "${profile:user.name}", in which case
// the value is read fresh from that source instead of the variables passed in.
package interp

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-drift/databind/pkg/keypath"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]*)\}|%\{([^}]*)\}|❮([^❯]*)❯`)

// HasTokens reports whether text contains at least one token.
func HasTokens(text string) bool {
	return tokenPattern.MatchString(text)
}

// Interpolator resolves tokens.
type Interpolator struct {
	// Lookup returns the data of a named source for inline "source:key"
	// tokens. Nil disables inline sources; such tokens resolve empty.
	Lookup func(source string) any
	// Resolver walks key paths.
	Resolver keypath.Resolver
}

// New returns an interpolator with data functions enabled.
func New(lookup func(source string) any) Interpolator {
	return Interpolator{Lookup: lookup, Resolver: keypath.Resolver{AllowFunctions: true}}
}

// InString replaces every token in text with its stringified value.
// Unresolved tokens become the empty string.
func (in Interpolator) InString(text string, variables any) string {
	if !strings.ContainsAny(text, "$%❮") {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		return Stringify(in.resolveToken(token, variables))
	})
}

func (in Interpolator) resolveToken(token string, variables any) any {
	body := tokenBody(token)
	data := variables
	if source, key, ok := strings.Cut(body, ":"); ok {
		if in.Lookup == nil {
			return nil
		}
		data = in.Lookup(strings.TrimSpace(source))
		body = key
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	return in.Resolver.Resolve(data, body)
}

func tokenBody(token string) string {
	switch {
	case strings.HasPrefix(token, "${"), strings.HasPrefix(token, "%{"):
		return token[2 : len(token)-1]
	case strings.HasPrefix(token, "❮"):
		return strings.TrimSuffix(strings.TrimPrefix(token, "❮"), "❯")
	}
	return token
}

type objectOptions struct {
	noClone bool
}

// ObjectOption configures InObject.
type ObjectOption func(*objectOptions)

// NoClone makes InObject rewrite maps and slices in place.
func NoClone() ObjectOption {
	return func(o *objectOptions) { o.noClone = true }
}

// InObject resolves tokens through nested maps and slices. By default the
// input is cloned first so the caller's data is never mutated; maps stay
// maps and slices stay slices. Data functions are invoked and their results
// resolved in turn when the Resolver allows functions; otherwise they are
// left in place.
func (in Interpolator) InObject(value any, variables any, opts ...ObjectOption) any {
	var o objectOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.noClone {
		value = Clone(value)
	}
	return in.resolveObject(value, variables, 0)
}

// maxDepth guards against self-referencing structures.
const maxDepth = 64

func (in Interpolator) resolveObject(value any, variables any, depth int) any {
	if depth > maxDepth {
		return value
	}
	switch v := value.(type) {
	case string:
		return in.InString(v, variables)
	case map[string]any:
		for k, item := range v {
			v[k] = in.resolveObject(item, variables, depth+1)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = in.resolveObject(item, variables, depth+1)
		}
		return v
	}
	if in.Resolver.AllowFunctions && keypath.IsFunc(value) {
		result, _ := keypath.Call(value)
		return in.resolveObject(Clone(result), variables, depth+1)
	}
	return value
}

// Clone deep-copies maps and slices, branching on container kind.
// Scalars and other values are returned as-is.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, item := range v {
			out[k] = item
		}
		return out
	case []string:
		return append([]string(nil), v...)
	}
	return value
}

// Stringify renders a resolved value for insertion into text. Data
// functions are never called here: whether they run is decided when the
// value is resolved, so one that survives resolution renders empty.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
	if keypath.IsFunc(v) {
		return ""
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) {
		if f > 0 {
			return "Infinity"
		}
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
