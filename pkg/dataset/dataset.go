// Package dataset merges per-element data-* attributes across related elements.
package dataset

import (
	"strings"

	"github.com/go-drift/databind/pkg/dom"
)

// DefaultAttribute lists the sets an element merges in.
const DefaultAttribute = "data-magic-sets"

// Aggregator resolves an element's effective dataset.
//
// The sets attribute holds comma-separated selectors processed in order:
//
//	parent            the grandparent's dataset
//	parents           every ancestor up to the scope boundary
//	closest(<sel>)    the nearest ancestor-or-self matching <sel>
//	<anything else>   every element in the document matching it
//
// Merging is first-write-wins, so the element's own keys always win.
type Aggregator struct {
	// Attribute names the sets directive. Empty means DefaultAttribute.
	Attribute string
	// Document answers document-wide selectors. Optional.
	Document dom.Document
	// Boundary returns the root scope that "parents" stops at. Optional.
	Boundary func(el dom.Element) dom.Element
}

// Resolve returns the merged dataset for el.
func (a Aggregator) Resolve(el dom.Element) map[string]string {
	if el == nil {
		return map[string]string{}
	}
	out := el.Dataset()
	if out == nil {
		out = make(map[string]string)
	}

	attr := a.Attribute
	if attr == "" {
		attr = DefaultAttribute
	}
	directive, ok := el.Attribute(attr)
	if !ok {
		return out
	}

	for _, token := range splitTokens(directive) {
		for _, source := range a.sources(el, token) {
			merge(out, source.Dataset())
		}
	}
	return out
}

func (a Aggregator) sources(el dom.Element, token string) []dom.Element {
	switch {
	case token == "parent":
		if p := el.Parent(); p != nil {
			if gp := p.Parent(); gp != nil {
				return []dom.Element{gp}
			}
		}
		return nil

	case token == "parents":
		var boundary dom.Element
		if a.Boundary != nil {
			boundary = a.Boundary(el)
		}
		var out []dom.Element
		for p := el.Parent(); p != nil; p = p.Parent() {
			out = append(out, p)
			if p == boundary {
				break
			}
		}
		return out

	case strings.HasPrefix(token, "closest("):
		if !strings.HasSuffix(token, ")") {
			return nil
		}
		selector := strings.TrimSpace(token[len("closest(") : len(token)-1])
		if selector == "" {
			return nil
		}
		if match := el.Closest(selector); match != nil {
			return []dom.Element{match}
		}
		return nil

	default:
		if a.Document == nil {
			return nil
		}
		return a.Document.QueryAll(token)
	}
}

// splitTokens splits on commas that are not inside parentheses, so
// "closest(a, b)" stays one token.
func splitTokens(directive string) []string {
	var tokens []string
	depth, start := 0, 0
	flush := func(end int) {
		if t := strings.TrimSpace(directive[start:end]); t != "" {
			tokens = append(tokens, t)
		}
	}
	for i, r := range directive {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(directive))
	return tokens
}

func merge(dst, src map[string]string) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}
