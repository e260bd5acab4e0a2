// Package datafile loads data sources from YAML, JSON, HCL, and SQLite files
// into a [store.Store] and keeps them fresh with a file watcher.
//
// Each file becomes one source named after its base name without extension,
// so data/profile.yaml populates the "profile" source.
package datafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/store"
)

// SourceName returns the source name a data file is stored under.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Supported reports whether path has an extension Load understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".hcl":
		return true
	}
	return isDatabase(path)
}

// Load reads and decodes a data file.
func Load(path string) (source string, value any, err error) {
	source = SourceName(path)
	if !Supported(path) {
		return source, nil, fmt.Errorf("%s: %w", path, errors.ErrUnknownFormat)
	}

	if isDatabase(path) {
		value, err = loadDatabase(path)
		return source, value, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return source, nil, err
	}
	value, err = Decode(path, data)
	return source, value, err
}

// Decode decodes a text data file according to the extension of name.
// UTF-16 input is accepted when it starts with a byte order mark.
func Decode(name string, data []byte) (any, error) {
	data, err := toUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return normalize(v), nil
	case ".json":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return v, nil
	case ".hcl":
		return decodeHCL(name, data)
	default:
		return nil, fmt.Errorf("%s: %w", name, errors.ErrUnknownFormat)
	}
}

func toUTF8(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	return out, err
}

// normalize converts the map[any]any yaml produces for non-string keys into
// map[string]any so key paths resolve through it.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalize(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = normalize(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = normalize(child)
		}
		return t
	default:
		return v
	}
}

func decodeHCL(name string, data []byte) (any, error) {
	file, diags := hclsyntax.ParseConfig(data, name, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", name, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s: unexpected body type %T", name, file.Body)
	}
	return bodyToNative(body)
}

// bodyToNative maps attributes to their values and blocks to nested maps.
// Labelled blocks nest one map level per label; repeated unlabelled blocks
// of the same type collect into a list.
func bodyToNative(body *hclsyntax.Body) (map[string]any, error) {
	out := make(map[string]any, len(body.Attributes)+len(body.Blocks))

	names := make([]string, 0, len(body.Attributes))
	for name := range body.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		attr := body.Attributes[name]
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("in attribute '%s': %w", name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("in attribute '%s': %w", name, err)
		}
		out[name] = native
	}

	for _, block := range body.Blocks {
		child, err := bodyToNative(block.Body)
		if err != nil {
			return nil, fmt.Errorf("in block '%s': %w", block.Type, err)
		}
		if len(block.Labels) == 0 {
			switch existing := out[block.Type].(type) {
			case nil:
				out[block.Type] = child
			case []any:
				out[block.Type] = append(existing, child)
			default:
				out[block.Type] = []any{existing, child}
			}
			continue
		}

		parent, _ := out[block.Type].(map[string]any)
		if parent == nil {
			parent = make(map[string]any)
			out[block.Type] = parent
		}
		for _, label := range block.Labels[:len(block.Labels)-1] {
			next, _ := parent[label].(map[string]any)
			if next == nil {
				next = make(map[string]any)
				parent[label] = next
			}
			parent = next
		}
		parent[block.Labels[len(block.Labels)-1]] = child
	}
	return out, nil
}

// Expand resolves doublestar patterns to a sorted, de-duplicated list of
// supported files.
func Expand(patterns ...string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if Supported(m) {
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// LoadAll loads every file matching patterns into st. Files that fail to
// load are reported and skipped; the first failure is returned after all
// files have been attempted.
func LoadAll(st *store.Store, patterns ...string) error {
	files, err := Expand(patterns...)
	if err != nil {
		return &errors.BindError{Op: "datafile.LoadAll", Kind: errors.KindLoad, Err: err}
	}

	var first error
	for _, path := range files {
		source, value, err := Load(path)
		if err != nil {
			bindErr := &errors.BindError{Op: "datafile.LoadAll", Kind: errors.KindLoad, Err: err, Source: source}
			errors.Report(bindErr)
			if first == nil {
				first = bindErr
			}
			continue
		}
		st.Set(source, value)
		logger().Debug("loaded data file", "path", path, "source", source)
	}
	return first
}
