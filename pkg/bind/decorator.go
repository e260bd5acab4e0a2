package bind

import (
	"regexp"
	"slices"
	"strings"

	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/handlers"
)

var validAttribute = regexp.MustCompile(`^[a-z0-9-_]+$`)

// mapping broadcasts an attribute's value to matching descendants.
type mapping struct {
	attribute string
	selector  string
	handlers  []string
}

// MapAttributeToSelector watches attribute on enabled scenes. When it
// changes on an element, the new value is passed as event data to handlers
// for that element and for every descendant matching selector. Returned
// fields are carried along the handler chain.
//
// An element carrying attribute+"-initial" but not attribute gets the initial
// value copied over when its document is enabled, and again whenever the
// initial attribute changes. In preview the initial value always wins. Invalid attribute names and
// empty selectors are ignored; it reports whether the mapping was installed.
func (e *Engine) MapAttributeToSelector(attribute, selector string, names ...string) bool {
	attribute = strings.TrimSpace(attribute)
	selector = strings.TrimSpace(selector)
	if !validAttribute.MatchString(attribute) || selector == "" || len(names) == 0 {
		return false
	}
	list := handlers.ParseList(strings.Join(names, ","), "")
	if len(list) == 0 {
		return false
	}
	e.mappings[attribute] = &mapping{attribute: attribute, selector: selector, handlers: list}
	e.resubscribe()
	for _, id := range e.RunningObservers() {
		e.applyMappings(e.docs[id].doc)
	}
	return true
}

// MapDataAttribute maps data-<name> to elements with class <name>.
func (e *Engine) MapDataAttribute(name string, names ...string) bool {
	name = strings.TrimSpace(name)
	if !validAttribute.MatchString(name) {
		return false
	}
	return e.MapAttributeToSelector("data-"+name, "."+name, names...)
}

// applyMappings seeds initial values and renders current ones.
func (e *Engine) applyMappings(doc dom.Document) {
	root := doc.SceneRoot()
	if root == nil {
		return
	}
	names := make([]string, 0, len(e.mappings))
	for name := range e.mappings {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		m := e.mappings[name]
		initial := m.attribute + "-initial"
		for _, el := range root.QueryAll(dom.AttributeSelector(initial)) {
			if _, ok := el.Attribute(m.attribute); ok {
				continue
			}
			value, _ := el.Attribute(initial)
			el.SetAttribute(m.attribute, value)
		}
		for _, el := range root.QueryAll(dom.AttributeSelector(m.attribute)) {
			value, _ := el.Attribute(m.attribute)
			m.broadcast(e, doc, el, strings.TrimSpace(value))
		}
	}
}

// seed copies a changed initial value onto the mapped attribute.
func (m *mapping) seed(e *Engine, el dom.Element) {
	initial, ok := el.Attribute(m.attribute + "-initial")
	if !ok {
		return
	}
	if _, has := el.Attribute(m.attribute); has && !e.opts.Preview {
		return
	}
	el.SetAttribute(m.attribute, initial)
}

func (m *mapping) broadcast(e *Engine, doc dom.Document, el dom.Element, value string) {
	targets := []dom.Element{el}
	targets = append(targets, el.QueryAll(m.selector)...)

	phase := handlers.PrepareForDisplay
	var data any = value
	if value == "" {
		phase = handlers.Unload
		data = nil
	}
	for _, target := range targets {
		e.dispatchChain(doc, target, phase, m.handlers, handlers.Event{
			Data: data,
			Key:  m.attribute,
		})
	}
}

// selectorWatch runs handlers when a watched attribute changes on an element
// matching selector.
type selectorWatch struct {
	selector   string
	attributes []string
	handlers   []string
}

// ObserveBySelector runs handlers on elements matching selector whenever one
// of attributes changes on them. The event carries the new value as data and
// the attribute name as key. Without attributes, "style" is watched. It
// reports whether the watch was installed.
func (e *Engine) ObserveBySelector(selector string, names []string, attributes ...string) bool {
	selector = strings.TrimSpace(selector)
	list := handlers.ParseList(strings.Join(names, ","), "")
	if selector == "" || len(list) == 0 {
		return false
	}
	if len(attributes) == 0 {
		attributes = []string{"style"}
	}
	var attrs []string
	for _, a := range attributes {
		if a = strings.TrimSpace(a); validAttribute.MatchString(a) && !slices.Contains(attrs, a) {
			attrs = append(attrs, a)
		}
	}
	if len(attrs) == 0 {
		return false
	}
	e.watches = append(e.watches, &selectorWatch{selector: selector, attributes: attrs, handlers: list})
	e.resubscribe()
	return true
}

func (w *selectorWatch) handle(e *Engine, doc dom.Document, el dom.Element, attribute, value string) {
	if !slices.Contains(w.attributes, attribute) || !el.Matches(w.selector) {
		return
	}
	e.dispatchChain(doc, el, handlers.PrepareForDisplay, w.handlers, handlers.Event{
		Data: value,
		Key:  attribute,
	})
}
