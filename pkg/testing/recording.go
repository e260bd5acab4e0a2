package testing

import (
	"sync"

	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/handlers"
)

// Call is one recorded handler invocation.
type Call struct {
	Phase   handlers.Phase
	Element string
	Data    any
	Key     string
	Source  string
	Fields  handlers.Fields
}

// RecordingHandler records every phase it is dispatched for. When Render is
// set, PrepareForDisplay, Load, and Unload also behave like the text handler.
type RecordingHandler struct {
	// Render makes the handler update element content.
	Render bool
	// Return is handed back from every invocation.
	Return handlers.Fields

	mu    sync.Mutex
	calls []Call
}

// Bundle returns the bundle to register.
func (r *RecordingHandler) Bundle() handlers.Bundle {
	text := handlers.TextBundle()
	phase := func(p handlers.Phase) handlers.Func {
		return func(doc dom.Document, el dom.Element, ev *handlers.Event) handlers.Fields {
			r.record(p, el, ev)
			if r.Render && text[p] != nil {
				text[p](doc, el, ev)
			}
			return r.Return
		}
	}
	return handlers.Bundle{
		handlers.PrepareForDisplay: phase(handlers.PrepareForDisplay),
		handlers.Load:              phase(handlers.Load),
		handlers.Unload:            phase(handlers.Unload),
		handlers.PreviewUpdate:     phase(handlers.PreviewUpdate),
	}
}

func (r *RecordingHandler) record(p handlers.Phase, el dom.Element, ev *handlers.Event) {
	var fields handlers.Fields
	if len(ev.Fields) > 0 {
		fields = make(handlers.Fields, len(ev.Fields))
		for k, v := range ev.Fields {
			fields[k] = v
		}
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{
		Phase:   p,
		Element: dom.Describe(el),
		Data:    ev.Data,
		Key:     ev.Key,
		Source:  ev.Source,
		Fields:  fields,
	})
	r.mu.Unlock()
}

// Calls returns the recorded invocations in order.
func (r *RecordingHandler) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how often phase ran.
func (r *RecordingHandler) Count(phase handlers.Phase) int {
	return r.CountFor("", phase)
}

// CountFor returns how often phase ran on the element described by element
// (see dom.Describe). An empty element counts every element.
func (r *RecordingHandler) CountFor(element string, phase handlers.Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Phase == phase && (element == "" || c.Element == element) {
			n++
		}
	}
	return n
}

// Last returns the most recent call, if any.
func (r *RecordingHandler) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// Reset forgets recorded calls.
func (r *RecordingHandler) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
