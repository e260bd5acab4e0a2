package handlers

import (
	"strings"

	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/interp"
)

// FieldUnchanged is set by built-in handlers when a render left the element
// untouched because it already showed the value.
const FieldUnchanged = "unchanged"

// AttributeDirective names the attribute the "attribute" handler writes into.
const AttributeDirective = "data-magic-attribute"

// BackgroundImage is the element property the "image" handler sets on
// elements that are not <img>.
const BackgroundImage = "backgroundImage"

// FieldSkipped is set by the guarded text handler when it left an element
// alone because rewriting its content would destroy bound descendants.
const FieldSkipped = "skipped"

// ManagedSelector matches the bound descendants the default text handler
// refuses to overwrite.
const ManagedSelector = "[data-magic-key]"

// renderedContent is the element property recording the last value the text
// handler wrote and the markup the host produced for it.
const renderedContent = "databind.content"

type contentRecord struct {
	value    string
	rendered string
}

func builtins() map[string]Bundle {
	return map[string]Bundle{
		"text":      GuardedTextBundle(ManagedSelector),
		"image":     ImageBundle(),
		"attribute": AttributeBundle(AttributeDirective),
		"none":      {},
	}
}

// TextBundle renders the value as the element's content.
func TextBundle() Bundle {
	return GuardedTextBundle("")
}

// GuardedTextBundle is TextBundle that leaves elements alone when they
// contain descendants matching managed. An empty selector disables the guard.
func GuardedTextBundle(managed string) Bundle {
	guarded := func(el dom.Element) bool {
		return managed != "" && len(el.QueryAll(managed)) > 0
	}
	render := func(_ dom.Document, el dom.Element, ev *Event) Fields {
		if guarded(el) {
			return Fields{FieldSkipped: true}
		}
		value := interp.Stringify(ev.Data)
		if contentShows(el, value) {
			return Fields{FieldUnchanged: true}
		}
		el.SetContent(value)
		el.SetProperty(renderedContent, contentRecord{value: value, rendered: el.Content()})
		return nil
	}
	return Bundle{
		PrepareForDisplay: render,
		Load:              render,
		Unload: func(_ dom.Document, el dom.Element, _ *Event) Fields {
			if guarded(el) {
				return Fields{FieldSkipped: true}
			}
			if el.Content() != "" {
				el.SetContent("")
			}
			el.SetProperty(renderedContent, nil)
			return nil
		},
	}
}

// contentShows reports whether el already displays value. Hosts normalize
// markup, so a value we wrote is compared by the markup it produced.
func contentShows(el dom.Element, value string) bool {
	current := el.Content()
	if rec, ok := el.Property(renderedContent); ok {
		if r, ok := rec.(contentRecord); ok && r.value == value && r.rendered == current {
			return true
		}
	}
	return current == value
}

// ImageBundle sets the src of <img> elements and the background image
// property of anything else.
func ImageBundle() Bundle {
	render := func(_ dom.Document, el dom.Element, ev *Event) Fields {
		url := strings.TrimSpace(interp.Stringify(ev.Data))
		if el.Matches("img") {
			if current, ok := el.Attribute("src"); ok && current == url {
				return Fields{FieldUnchanged: true}
			}
			el.SetAttribute("src", url)
			return nil
		}
		value := "url(" + url + ")"
		if current, ok := el.Property(BackgroundImage); ok && current == value {
			return Fields{FieldUnchanged: true}
		}
		el.SetProperty(BackgroundImage, value)
		return nil
	}
	return Bundle{
		PrepareForDisplay: render,
		Load:              render,
		Unload: func(_ dom.Document, el dom.Element, _ *Event) Fields {
			if el.Matches("img") {
				el.RemoveAttribute("src")
				return nil
			}
			el.SetProperty(BackgroundImage, nil)
			return nil
		},
	}
}

// AttributeBundle writes the value into the attribute named by directive on
// the same element. Elements without the directive are left alone.
func AttributeBundle(directive string) Bundle {
	target := func(el dom.Element) string {
		name, _ := el.Attribute(directive)
		return strings.TrimSpace(name)
	}
	render := func(_ dom.Document, el dom.Element, ev *Event) Fields {
		name := target(el)
		if name == "" {
			return nil
		}
		value := interp.Stringify(ev.Data)
		if current, ok := el.Attribute(name); ok && current == value {
			return Fields{FieldUnchanged: true}
		}
		el.SetAttribute(name, value)
		return nil
	}
	return Bundle{
		PrepareForDisplay: render,
		Load:              render,
		Unload: func(_ dom.Document, el dom.Element, _ *Event) Fields {
			if name := target(el); name != "" {
				el.RemoveAttribute(name)
			}
			return nil
		},
	}
}
