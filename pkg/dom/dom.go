// Package dom defines the element tree the binding engine operates on.
//
// The engine does not ship its own DOM. Hosts adapt their tree to [Element]
// and [Document]; pkg/htmlhost provides an adapter over golang.org/x/net/html.
package dom

// Element is an addressable node with attributes.
type Element interface {
	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool)
	SetAttribute(name, value string)
	RemoveAttribute(name string)

	// Parent returns the parent element, or nil at the top of the tree.
	Parent() Element
	// Matches reports whether the element matches a selector.
	// Invalid selectors never match.
	Matches(selector string) bool
	// Closest returns the nearest ancestor-or-self matching selector, or nil.
	Closest(selector string) Element
	// QueryAll returns matching descendants in document order.
	QueryAll(selector string) []Element

	// Dataset returns the element's own data-* attributes without the prefix.
	Dataset() map[string]string

	// Content returns the inner markup of the element.
	Content() string
	SetContent(content string)

	// Property reads a host-specific rendering property.
	Property(name string) (any, bool)
	SetProperty(name string, value any)
}

// MutationRecord describes one attribute change. The new value is read live
// from Target.
type MutationRecord struct {
	Target      Element
	Attribute   string
	OldValue    string
	HadOldValue bool
}

// Document is the host document a binding runs in.
type Document interface {
	// ID identifies the document; observers are keyed by it.
	ID() string
	// SceneRoot returns the root of the currently displayed scene.
	SceneRoot() Element
	// CustomData returns the per-document custom data object.
	CustomData() map[string]any
	// QueryAll returns all matching elements in document order.
	QueryAll(selector string) []Element
	// Observe subscribes to attribute mutations of the named attributes in
	// the subtree rooted at root. fn receives batches of records.
	Observe(root Element, attributes []string, fn func([]MutationRecord)) (cancel func())
}

// HostFunction is a named function exposed by the host document. Handler
// names ending in "()" are forwarded to it. The event is passed as a plain
// map; the returned fields are threaded into the next handler.
type HostFunction func(doc Document, el Element, event map[string]any) map[string]any

// FunctionHost is implemented by documents that expose named functions.
type FunctionHost interface {
	HostFunction(name string) (HostFunction, bool)
}

// Describe returns a short human-readable label for el.
func Describe(el Element) string {
	if el == nil {
		return "<nil>"
	}
	if s, ok := el.(interface{ String() string }); ok {
		return s.String()
	}
	return "element"
}

// Contains reports whether el is ancestor or a descendant of it.
func Contains(ancestor, el Element) bool {
	if ancestor == nil || el == nil {
		return false
	}
	for current := el; current != nil; current = current.Parent() {
		if current == ancestor {
			return true
		}
	}
	return false
}

// AttributeSelector returns a selector matching elements carrying name.
func AttributeSelector(name string) string {
	return "[" + name + "]"
}
