// Package inherit looks up directive attributes on an element's ancestors.
//
// Lookups jump from carrier to carrier: the nearest ancestor-or-self that has
// the attribute answers, without inspecting the elements in between. Branch
// directives may start with "+" to append to the branch found further up
// instead of replacing it, which lets nested scopes compose:
//
//	<div data-magic-branch="outer">
//	    <div data-magic-branch="+inner">  <!-- resolves to "outer.inner" -->
package inherit

import (
	"strings"

	"github.com/go-drift/databind/pkg/dom"
)

// AdditionMarker prefixes a value that extends the inherited one.
const AdditionMarker = "+"

type options struct {
	additions bool
	boundary  dom.Element
}

// Option configures FindAttribute.
type Option func(*options)

// AllowAdditions enables "+segment" accumulation.
func AllowAdditions() Option {
	return func(o *options) { o.additions = true }
}

// Boundary stops the search at carriers outside boundary.
func Boundary(boundary dom.Element) Option {
	return func(o *options) { o.boundary = boundary }
}

// FindAttribute returns the nearest value of attr for el.
func FindAttribute(el dom.Element, attr string, opts ...Option) (string, bool) {
	if el == nil || attr == "" {
		return "", false
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	selector := dom.AttributeSelector(attr)
	var segments []string
	found := false

	for carrier := el.Closest(selector); carrier != nil; {
		if o.boundary != nil && !dom.Contains(o.boundary, carrier) {
			break
		}
		value, _ := carrier.Attribute(attr)
		value = strings.TrimSpace(value)

		if !o.additions || !strings.HasPrefix(value, AdditionMarker) {
			segments = append(segments, value)
			found = true
			break
		}

		segments = append(segments, strings.TrimPrefix(value, AdditionMarker))
		found = true
		parent := carrier.Parent()
		if parent == nil {
			break
		}
		carrier = parent.Closest(selector)
	}

	if !found {
		return "", false
	}
	// Collected leaf first; the outermost value leads the path.
	parts := make([]string, 0, len(segments))
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.Trim(segments[i], ". "); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "."), true
}
