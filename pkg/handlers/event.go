package handlers

// Fields are extra values a handler returns. They are carried into the
// event of the next handler in the list.
type Fields = map[string]any

// Event is built fresh for every dispatch.
type Event struct {
	// Type is the phase being dispatched.
	Type Phase
	// Data is the resolved value. Nil during Unload.
	Data any
	// Source is the data source the value came from.
	Source string
	// Key is the key path as written on the element.
	Key string
	// Handler is the name of the handler being invoked.
	Handler string
	// Fields holds values threaded from earlier handlers.
	Fields Fields
}

// With returns a copy of the event with fields merged over the carried ones.
func (e *Event) With(fields Fields) *Event {
	next := *e
	next.Fields = make(Fields, len(e.Fields)+len(fields))
	for k, v := range e.Fields {
		next.Fields[k] = v
	}
	for k, v := range fields {
		next.Fields[k] = v
	}
	return &next
}

// Field returns a carried field.
func (e *Event) Field(name string) (any, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[name]
	return v, ok
}

// Map flattens the event into a plain map for host functions.
func (e *Event) Map() map[string]any {
	out := make(map[string]any, len(e.Fields)+5)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["type"] = e.Type.EventName()
	out["data"] = e.Data
	out["source"] = e.Source
	out["key"] = e.Key
	out["handler"] = e.Handler
	return out
}
