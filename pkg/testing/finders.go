package testing

import (
	"fmt"
	"strings"

	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/htmlhost"
)

// Finder locates elements in a document.
type Finder interface {
	// Evaluate returns all matching elements in document order.
	Evaluate(doc *htmlhost.Document) []dom.Element
	// Description returns a human-readable description for error messages.
	Description() string
}

// FinderResult wraps finder results with convenient accessors.
type FinderResult struct {
	elements []dom.Element
	finder   Finder
}

// First returns the first match. Panics if no matches.
func (r FinderResult) First() dom.Element {
	if len(r.elements) == 0 {
		panic(fmt.Sprintf("Finder found no elements: %s", r.description()))
	}
	return r.elements[0]
}

// FirstOrNil returns the first match, or nil if none.
func (r FinderResult) FirstOrNil() dom.Element {
	if len(r.elements) == 0 {
		return nil
	}
	return r.elements[0]
}

// At returns the match at index. Panics if out of range.
func (r FinderResult) At(index int) dom.Element {
	if index < 0 || index >= len(r.elements) {
		panic(fmt.Sprintf("Finder index %d out of range (found %d): %s", index, len(r.elements), r.description()))
	}
	return r.elements[index]
}

// All returns all matches in document order.
func (r FinderResult) All() []dom.Element {
	return r.elements
}

// Count returns the number of matches.
func (r FinderResult) Count() int {
	return len(r.elements)
}

// Exists returns true if at least one match was found.
func (r FinderResult) Exists() bool {
	return len(r.elements) > 0
}

func (r FinderResult) description() string {
	if r.finder == nil {
		return "unknown"
	}
	return r.finder.Description()
}

type selectorFinder struct {
	selector string
	desc     string
}

func (f selectorFinder) Evaluate(doc *htmlhost.Document) []dom.Element {
	return doc.QueryAll(f.selector)
}

func (f selectorFinder) Description() string {
	return f.desc
}

// BySelector finds elements matching a CSS selector.
func BySelector(selector string) Finder {
	return selectorFinder{selector: selector, desc: fmt.Sprintf("BySelector(%q)", selector)}
}

// ByID finds the element with the given id attribute.
func ByID(id string) Finder {
	return selectorFinder{selector: "#" + id, desc: fmt.Sprintf("ByID(%q)", id)}
}

// ByAttribute finds elements carrying name. A non-empty value also requires
// the attribute to equal it.
func ByAttribute(name, value string) Finder {
	return predicateFinder{
		desc: fmt.Sprintf("ByAttribute(%q, %q)", name, value),
		match: func(el dom.Element) bool {
			v, ok := el.Attribute(name)
			return ok && (value == "" || v == value)
		},
		selector: dom.AttributeSelector(name),
	}
}

// ByKey finds elements whose key directive equals key, using the default
// attribute prefix.
func ByKey(key string) Finder {
	name := config.Default().Attributes().Key
	return predicateFinder{
		desc: fmt.Sprintf("ByKey(%q)", key),
		match: func(el dom.Element) bool {
			v, _ := el.Attribute(name)
			return strings.TrimSpace(v) == key
		},
		selector: dom.AttributeSelector(name),
	}
}

// ByContent finds elements whose rendered content equals text.
func ByContent(text string) Finder {
	return predicateFinder{
		desc:     fmt.Sprintf("ByContent(%q)", text),
		match:    func(el dom.Element) bool { return el.Content() == text },
		selector: "*",
	}
}

type predicateFinder struct {
	desc     string
	selector string
	match    func(dom.Element) bool
}

func (f predicateFinder) Evaluate(doc *htmlhost.Document) []dom.Element {
	var out []dom.Element
	for _, el := range doc.QueryAll(f.selector) {
		if f.match(el) {
			out = append(out, el)
		}
	}
	return out
}

func (f predicateFinder) Description() string {
	return f.desc
}
