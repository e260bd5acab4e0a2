package bind

import (
	"slices"
	"strings"

	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/handlers"
)

// observed is one enabled document.
type observed struct {
	doc    dom.Document
	cancel func()
}

// Enable starts watching doc's scene for directive edits. Enabling an
// enabled document does nothing.
func (e *Engine) Enable(doc dom.Document) {
	if doc == nil {
		return
	}
	if _, ok := e.docs[doc.ID()]; ok {
		return
	}
	o := &observed{doc: doc}
	e.docs[doc.ID()] = o
	e.subscribe(o)
	e.applyMappings(doc)
	e.logger.Debug("observer enabled", "document", doc.ID())
}

// Disable stops watching doc. Disabling a disabled document does nothing.
func (e *Engine) Disable(doc dom.Document) {
	if doc == nil {
		return
	}
	e.disable(doc.ID())
}

func (e *Engine) disable(id string) {
	o, ok := e.docs[id]
	if !ok {
		return
	}
	if o.cancel != nil {
		o.cancel()
	}
	delete(e.docs, id)
	e.logger.Debug("observer disabled", "document", id)
}

// Enabled reports whether doc is being watched.
func (e *Engine) Enabled(doc dom.Document) bool {
	if doc == nil {
		return false
	}
	_, ok := e.docs[doc.ID()]
	return ok
}

// RunningObservers returns the IDs of the enabled documents, sorted.
func (e *Engine) RunningObservers() []string {
	ids := make([]string, 0, len(e.docs))
	for id := range e.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Engine) subscribe(o *observed) {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	root := o.doc.SceneRoot()
	if root == nil {
		return
	}
	attrs := e.names.Observed()
	for name := range e.mappings {
		attrs = append(attrs, name, name+"-initial")
	}
	for _, w := range e.watches {
		attrs = append(attrs, w.attributes...)
	}
	doc := o.doc
	o.cancel = doc.Observe(root, attrs, func(records []dom.MutationRecord) {
		e.handleRecords(doc, records)
	})
}

func (e *Engine) resubscribe() {
	for _, id := range e.RunningObservers() {
		e.subscribe(e.docs[id])
	}
}

type elementRefresh struct {
	doc string
	el  dom.Element
}

type subtreeRefresh struct {
	doc string
	el  dom.Element
}

func (e *Engine) handleRecords(doc dom.Document, records []dom.MutationRecord) {
	for _, r := range records {
		el := r.Target
		if el == nil {
			continue
		}
		current, _ := el.Attribute(r.Attribute)
		current = strings.TrimSpace(current)
		old := strings.TrimSpace(r.OldValue)
		if current == old {
			continue
		}
		e.logger.Debug("directive changed", "element", dom.Describe(el), "attribute", r.Attribute, "old", old, "new", current)

		for _, w := range e.watches {
			w.handle(e, doc, el, r.Attribute, current)
		}

		switch r.Attribute {
		case e.names.Key:
			if current == "" {
				if e.rendered(el) || !e.known(el) {
					e.unload(doc, el, old, "", e.handlerList(el), nil)
				}
				continue
			}
			e.refreshElementLater(doc, el)

		case e.names.Source, e.names.Branch:
			e.unloadSubtree(doc, el)
			e.refreshSubtreeLater(doc, el)

		case e.names.Handler:
			if e.rendered(el) {
				e.unload(doc, el, e.keyOf(el), "", handlers.ParseList(old, e.registry.Default()), nil)
			}
			e.refreshElementLater(doc, el)

		case e.names.Prefix, e.names.Append:
			e.refreshElementLater(doc, el)

		default:
			if m, ok := e.mappings[r.Attribute]; ok {
				m.broadcast(e, doc, el, current)
			} else if m, ok := e.mappings[strings.TrimSuffix(r.Attribute, "-initial")]; ok {
				m.seed(e, el)
			}
		}
	}
}

func (e *Engine) handlerList(el dom.Element) []string {
	attr, _ := el.Attribute(e.names.Handler)
	return handlers.ParseList(attr, e.registry.Default())
}

func (e *Engine) keyOf(el dom.Element) string {
	key, _ := el.Attribute(e.names.Key)
	return strings.TrimSpace(key)
}

// unloadSubtree unloads el and the bindings below it that are rendered.
func (e *Engine) unloadSubtree(doc dom.Document, el dom.Element) {
	targets := append([]dom.Element{el}, el.QueryAll(dom.AttributeSelector(e.names.Key))...)
	for _, target := range targets {
		if e.rendered(target) {
			e.unload(doc, target, e.keyOf(target), "", e.handlerList(target), nil)
		}
	}
}

func (e *Engine) refreshElementLater(doc dom.Document, el dom.Element) {
	if !e.opts.DebounceObserver {
		e.RefreshElement(doc, el)
		return
	}
	e.schedule(elementRefresh{doc: doc.ID(), el: el}, func() { e.RefreshElement(doc, el) })
}

func (e *Engine) refreshSubtreeLater(doc dom.Document, el dom.Element) {
	if !e.opts.DebounceObserver {
		e.Refresh(doc, el)
		return
	}
	e.schedule(subtreeRefresh{doc: doc.ID(), el: el}, func() { e.Refresh(doc, el) })
}
