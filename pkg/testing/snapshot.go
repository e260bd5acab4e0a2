package testing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-drift/databind/pkg/dom"
)

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the bound elements of a document.
type Snapshot struct {
	Document string        `json:"document"`
	Bindings []BindingNode `json:"bindings"`
}

// BindingNode is one element carrying a directive.
type BindingNode struct {
	Element    string            `json:"element"`
	Directives map[string]string `json:"directives"`
	Content    string            `json:"content"`
}

// CaptureSnapshot records every element that carries a directive attribute
// of the engine's prefix, in document order.
func (t *Tester) CaptureSnapshot() *Snapshot {
	names := t.engine.Attributes()
	tracked := []string{names.Key, names.Source, names.Branch, names.Handler, names.Prefix, names.Append, names.Sets, names.Attribute, names.Initial}
	selectors := make([]string, len(tracked))
	for i, name := range tracked {
		selectors[i] = dom.AttributeSelector(name)
	}

	snap := &Snapshot{Document: t.doc.ID(), Bindings: []BindingNode{}}
	for _, el := range t.doc.QueryAll(strings.Join(selectors, ", ")) {
		node := BindingNode{
			Element:    dom.Describe(el),
			Directives: make(map[string]string),
			Content:    el.Content(),
		}
		for _, name := range tracked {
			if v, ok := el.Attribute(name); ok {
				node.Directives[name] = v
			}
		}
		snap.Bindings = append(snap.Bindings, node)
	}
	return snap
}

// MatchesFile compares the snapshot against the file at path. On mismatch it
// reports a diff and instructions for updating. When DATABIND_UPDATE_SNAPSHOTS=1
// is set, the file is rewritten instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv("DATABIND_UPDATE_SNAPSHOTS") == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: DATABIND_UPDATE_SNAPSHOTS=1 go test -run %s", path, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s\n%s\n\nTo update: DATABIND_UPDATE_SNAPSHOTS=1 go test -run %s", path, diff, t.Name())
	}
}

// UpdateFile writes the snapshot to path, creating directories as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := marshalSnapshot(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Diff returns a line diff between other (expected) and s (actual), or ""
// when they match.
func (s *Snapshot) Diff(other *Snapshot) string {
	actual, err := marshalSnapshot(s)
	if err != nil {
		return fmt.Sprintf("failed to marshal actual snapshot: %v", err)
	}
	expected, err := marshalSnapshot(other)
	if err != nil {
		return fmt.Sprintf("failed to marshal expected snapshot: %v", err)
	}
	if bytes.Equal(actual, expected) {
		return ""
	}
	return unifiedDiff(string(expected), string(actual))
}

// Find returns the node for the element described by element.
func (s *Snapshot) Find(element string) (BindingNode, bool) {
	i := slices.IndexFunc(s.Bindings, func(n BindingNode) bool { return n.Element == element })
	if i < 0 {
		return BindingNode{}, false
	}
	return s.Bindings[i], true
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("invalid snapshot JSON: %w", err)
	}
	return &snap, nil
}

func marshalSnapshot(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unifiedDiff produces a simple line-oriented diff.
func unifiedDiff(expected, actual string) string {
	expectedLines := strings.Split(expected, "\n")
	actualLines := strings.Split(actual, "\n")

	var buf strings.Builder
	buf.WriteString("--- expected\n+++ actual\n")

	maxLen := max(len(expectedLines), len(actualLines))
	for i := 0; i < maxLen; i++ {
		var e, a string
		if i < len(expectedLines) {
			e = expectedLines[i]
		}
		if i < len(actualLines) {
			a = actualLines[i]
		}
		if e == a {
			continue
		}
		if i < len(expectedLines) {
			fmt.Fprintf(&buf, "-%s\n", e)
		}
		if i < len(actualLines) {
			fmt.Fprintf(&buf, "+%s\n", a)
		}
	}
	return buf.String()
}
