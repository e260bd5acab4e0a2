package bind

import (
	"strings"

	"github.com/go-drift/databind/pkg/dataset"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/handlers"
	"github.com/go-drift/databind/pkg/inherit"
	"github.com/go-drift/databind/pkg/interp"
	"github.com/go-drift/databind/pkg/keypath"
)

// binding is the directive state read from an element for one update.
type binding struct {
	key      string
	source   string
	inline   bool
	branch   string
	handlers []string
}

// UpdateBinding renders el from its key directive.
//
// ev carries the phase to fire when the host drives the update from a
// lifecycle event; nil fires the default phases. Elements without a key are
// left alone. A key that resolves to nothing unloads the element.
func (e *Engine) UpdateBinding(doc dom.Document, el dom.Element, ev *handlers.Event) {
	if doc == nil || el == nil {
		return
	}
	raw, ok := el.Attribute(e.names.Key)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	if ev != nil && ev.Type == handlers.Unload {
		e.UnloadBinding(doc, el, ev)
		return
	}
	if e.updating[el] {
		e.logger.Debug("reentrant update dropped", "element", dom.Describe(el))
		return
	}
	e.updating[el] = true
	defer delete(e.updating, el)

	b := e.readBinding(doc, el, raw)
	data := e.sourceData(doc, b.source)
	scope := data
	if b.branch != "" {
		scope = e.resolver().Resolve(data, b.branch)
	}
	var value any
	if b.key != "" {
		value = e.resolver().Resolve(scope, b.key)
	} else {
		value = scope
	}

	base := handlers.Event{Source: b.source, Key: b.key}
	if ev != nil {
		base.Fields = ev.Fields
	}
	if value == nil && e.fallback != nil {
		asked := base
		value = e.fallback(doc, el, &asked)
	}
	if value == nil {
		if e.rendered(el) || !e.known(el) {
			e.unload(doc, el, b.key, b.source, b.handlers, base.Fields)
		}
		return
	}

	base.Data = e.decorate(doc, el, value, scope)
	for _, phase := range e.phases(ev) {
		e.dispatchChain(doc, el, phase, b.handlers, base)
	}
	e.bound[el] = boundState{doc: doc.ID(), rendered: true}
}

type boundState struct {
	doc      string
	rendered bool
}

func (e *Engine) known(el dom.Element) bool {
	_, ok := e.bound[el]
	return ok
}

func (e *Engine) rendered(el dom.Element) bool {
	return e.bound[el].rendered
}

// prune forgets the elements of doc that are no longer in its scene.
func (e *Engine) prune(doc dom.Document) {
	root := doc.SceneRoot()
	id := doc.ID()
	for el, st := range e.bound {
		if st.doc == id && !dom.Contains(root, el) {
			delete(e.bound, el)
		}
	}
}

// Tracked returns the number of elements the engine holds binding state for.
func (e *Engine) Tracked() int {
	return len(e.bound)
}

func (e *Engine) readBinding(doc dom.Document, el dom.Element, raw string) binding {
	lazyDataset := e.datasetFor(doc, el)
	directive := func(v string) string {
		v = strings.TrimSpace(v)
		if e.opts.AutoInterpolate && interp.HasTokens(v) {
			v = strings.TrimSpace(e.interpolator(doc).InString(v, lazyDataset()))
		}
		return v
	}

	var b binding
	b.key = directive(raw)
	if source, key, ok := strings.Cut(b.key, ":"); ok {
		b.source = strings.TrimSpace(source)
		b.key = strings.TrimSpace(key)
		b.inline = b.source != ""
	}

	if !b.inline {
		if source, ok := inherit.FindAttribute(el, e.names.Source); ok {
			b.source = directive(source)
		}
		if branch, ok := inherit.FindAttribute(el, e.names.Branch, inherit.AllowAdditions(), inherit.Boundary(doc.SceneRoot())); ok {
			b.branch = directive(branch)
		}
	}
	if b.source == "" {
		b.source = e.opts.DefaultSource
	}

	list, _ := el.Attribute(e.names.Handler)
	b.handlers = handlers.ParseList(list, e.registry.Default())
	return b
}

// datasetFor returns a memoized accessor for el's merged dataset as a
// variables map.
func (e *Engine) datasetFor(doc dom.Document, el dom.Element) func() any {
	var cached map[string]any
	return func() any {
		if cached != nil {
			return cached
		}
		var ds map[string]string
		if e.opts.MergeDataset {
			ds = dataset.Aggregator{
				Attribute: e.names.Sets,
				Document:  doc,
				Boundary:  func(dom.Element) dom.Element { return doc.SceneRoot() },
			}.Resolve(el)
		} else {
			ds = el.Dataset()
		}
		cached = make(map[string]any, len(ds))
		for k, v := range ds {
			cached[k] = v
		}
		return cached
	}
}

// decorate interpolates value against the binding scope and wraps scalars
// with the literal prefix and append directives.
func (e *Engine) decorate(doc dom.Document, el dom.Element, value any, scope any) any {
	if e.opts.ResolveVariables {
		switch v := value.(type) {
		case string:
			value = e.interpolator(doc).InString(v, scope)
		case map[string]any, []any:
			value = e.interpolator(doc).InObject(v, scope)
		}
	}
	if keypath.IsContainer(value) || keypath.IsFunc(value) {
		return value
	}
	prefix, hasPrefix := el.Attribute(e.names.Prefix)
	suffix, hasSuffix := el.Attribute(e.names.Append)
	if !hasPrefix && !hasSuffix {
		return value
	}
	return prefix + interp.Stringify(value) + suffix
}

func (e *Engine) phases(ev *handlers.Event) []handlers.Phase {
	if ev != nil {
		return []handlers.Phase{ev.Type}
	}
	if e.opts.Preview {
		return []handlers.Phase{handlers.PreviewUpdate}
	}
	return []handlers.Phase{handlers.PrepareForDisplay, handlers.Load}
}

// dispatchChain runs every handler for one phase, carrying each handler's
// returned fields into the next handler's event.
func (e *Engine) dispatchChain(doc dom.Document, el dom.Element, phase handlers.Phase, names []string, base handlers.Event) {
	d := e.dispatcher()
	carried := base.Fields
	for _, name := range names {
		ev := base
		ev.Type = phase
		ev.Handler = name
		ev.Fields = carried
		if fields := d.Dispatch(doc, el, &ev); len(fields) > 0 {
			carried = ev.With(fields).Fields
		}
	}
}

// UnloadBinding fires the Unload phase for el's handlers, or for the
// handlers named in override. Unloading an unloaded element is harmless.
func (e *Engine) UnloadBinding(doc dom.Document, el dom.Element, ev *handlers.Event, override ...string) {
	if doc == nil || el == nil {
		return
	}
	var list []string
	if len(override) > 0 {
		list = handlers.ParseList(strings.Join(override, ","), e.registry.Default())
	} else {
		attr, _ := el.Attribute(e.names.Handler)
		list = handlers.ParseList(attr, e.registry.Default())
	}
	key, _ := el.Attribute(e.names.Key)
	var source string
	var fields handlers.Fields
	if ev != nil {
		source = ev.Source
		fields = ev.Fields
		if ev.Key != "" {
			key = ev.Key
		}
	}
	e.unload(doc, el, strings.TrimSpace(key), source, list, fields)
}

func (e *Engine) unload(doc dom.Document, el dom.Element, key, source string, names []string, fields handlers.Fields) {
	e.dispatchChain(doc, el, handlers.Unload, names, handlers.Event{Key: key, Source: source, Fields: fields})
	e.bound[el] = boundState{doc: doc.ID()}
}

// RefreshElement re-runs el's binding. An element with only an initial key
// directive gets it copied into the key directive first.
func (e *Engine) RefreshElement(doc dom.Document, el dom.Element) {
	if doc == nil || el == nil {
		return
	}
	e.applyInitial(el)
	e.UpdateBinding(doc, el, nil)
}

// RefreshDescendants re-runs every binding below root in document order.
func (e *Engine) RefreshDescendants(doc dom.Document, root dom.Element) {
	if doc == nil || root == nil {
		return
	}
	for _, el := range root.QueryAll(e.bindingSelector()) {
		e.RefreshElement(doc, el)
	}
}

// Refresh re-runs root and every binding below it. A nil root means the
// document's scene root; refreshing the whole scene also drops the state of
// elements that left it.
func (e *Engine) Refresh(doc dom.Document, root dom.Element) {
	if doc == nil {
		return
	}
	scene := doc.SceneRoot()
	if root == nil {
		root = scene
	}
	if root == nil {
		return
	}
	if root == scene {
		e.prune(doc)
	}
	e.RefreshElement(doc, root)
	e.RefreshDescendants(doc, root)
}

func (e *Engine) bindingSelector() string {
	return dom.AttributeSelector(e.names.Key) + ", " + dom.AttributeSelector(e.names.Initial)
}

func (e *Engine) applyInitial(el dom.Element) {
	if _, ok := el.Attribute(e.names.Key); ok {
		return
	}
	if initial, ok := el.Attribute(e.names.Initial); ok && strings.TrimSpace(initial) != "" {
		el.SetAttribute(e.names.Key, strings.TrimSpace(initial))
	}
}
