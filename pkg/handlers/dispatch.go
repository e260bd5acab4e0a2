package handlers

import (
	"time"

	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/errors"
)

// Dispatcher invokes one handler for one phase.
type Dispatcher struct {
	Registry *Registry
	// Preview selects authoring-preview behavior: host calls are skipped and
	// PreviewUpdate falls back to PrepareForDisplay.
	Preview bool
}

// Dispatch runs the handler named by ev.Handler for ev.Type.
//
// Names ending in "()" are forwarded to the document's host functions.
// Unknown handlers and undefined phases are silent no-ops. A panicking
// handler is reported to the error handler and yields nil.
func (d Dispatcher) Dispatch(doc dom.Document, el dom.Element, ev *Event) (fields Fields) {
	if ev == nil || ev.Handler == "" {
		return nil
	}

	if IsHostCall(ev.Handler) {
		if d.Preview {
			return nil
		}
		host, ok := doc.(dom.FunctionHost)
		if !ok {
			return nil
		}
		fn, ok := host.HostFunction(ev.Handler)
		if !ok || fn == nil {
			return nil
		}
		defer d.recover(ev, el, true, &fields)
		return fn(doc, el, ev.Map())
	}

	if d.Registry == nil {
		return nil
	}
	bundle, ok := d.Registry.Lookup(ev.Handler)
	if !ok {
		return nil
	}
	fn := bundle[ev.Type]
	if fn == nil && d.Preview && ev.Type == PreviewUpdate {
		fn = bundle[PrepareForDisplay]
	}
	if fn == nil {
		return nil
	}
	defer d.recover(ev, el, false, &fields)
	return fn(doc, el, ev)
}

func (d Dispatcher) recover(ev *Event, el dom.Element, host bool, fields *Fields) {
	r := recover()
	if r == nil {
		return
	}
	*fields = nil
	herr := &errors.HandlerError{
		Handler:    ev.Handler,
		Phase:      ev.Type.String(),
		Element:    dom.Describe(el),
		Host:       host,
		StackTrace: errors.CaptureStack(),
		Timestamp:  time.Now(),
	}
	if err, ok := r.(error); ok {
		herr.Err = err
	}
	herr.Recovered = r
	errors.ReportHandlerError(herr)
}
