// Package htmlhost adapts golang.org/x/net/html trees to the dom interfaces.
//
// It is the reference host used by the tests and by embedders that bind
// server-side HTML. Attribute writes made through [Element] are recorded and
// delivered to observers in batches by [Document.FlushMutations], the
// equivalent of a browser's mutation observer microtask.
package htmlhost

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/go-drift/databind/pkg/dom"
)

// maxFlushRounds bounds observer feedback loops within one flush.
const maxFlushRounds = 64

// Document is an HTML document implementing dom.Document.
type Document struct {
	id        string
	root      *html.Node
	scene     *Element
	custom    map[string]any
	elements  map[*html.Node]*Element
	selectors map[string]cascadia.Matcher
	functions map[string]dom.HostFunction

	observers []*observer
	nextObs   int
}

type observer struct {
	id         int
	root       *Element
	attributes map[string]bool
	fn         func([]dom.MutationRecord)
	pending    []dom.MutationRecord
	active     bool
}

// Parse reads an HTML document. The scene root defaults to <body>.
// An empty id is replaced with a random UUID.
func Parse(id string, r io.Reader) (*Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmlhost: parse %s: %w", id, err)
	}
	d := &Document{
		id:        id,
		root:      root,
		custom:    make(map[string]any),
		elements:  make(map[*html.Node]*Element),
		selectors: make(map[string]cascadia.Matcher),
		functions: make(map[string]dom.HostFunction),
	}
	if body := findAtom(root, atom.Body); body != nil {
		d.scene = d.wrap(body)
	} else if el := firstElement(root); el != nil {
		d.scene = d.wrap(el)
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(id, markup string) (*Document, error) {
	return Parse(id, strings.NewReader(markup))
}

// ID implements dom.Document.
func (d *Document) ID() string { return d.id }

// SceneRoot implements dom.Document.
func (d *Document) SceneRoot() dom.Element {
	if d.scene == nil {
		return nil
	}
	return d.scene
}

// SetScene changes the scene root, e.g. when the host switches scenes.
func (d *Document) SetScene(el *Element) {
	d.scene = el
}

// CustomData implements dom.Document.
func (d *Document) CustomData() map[string]any { return d.custom }

// SetCustomData replaces the per-document custom data.
func (d *Document) SetCustomData(data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	d.custom = data
}

// RegisterFunction exposes fn to handler lists as "name()".
func (d *Document) RegisterFunction(name string, fn dom.HostFunction) {
	d.functions[strings.TrimSuffix(name, "()")] = fn
}

// HostFunction implements dom.FunctionHost.
func (d *Document) HostFunction(name string) (dom.HostFunction, bool) {
	fn, ok := d.functions[strings.TrimSuffix(name, "()")]
	return fn, ok && fn != nil
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(selector string) []dom.Element {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	return d.wrapAll(cascadia.QueryAll(d.root, sel))
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Element {
	sel := d.compile(selector)
	if sel == nil {
		return nil
	}
	if n := cascadia.Query(d.root, sel); n != nil {
		return d.wrap(n)
	}
	return nil
}

// ByID returns the element with the given id attribute, or nil.
func (d *Document) ByID(id string) *Element {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return d.wrap(found)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, for test failure messages.
func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// Observe implements dom.Document.
func (d *Document) Observe(root dom.Element, attributes []string, fn func([]dom.MutationRecord)) (cancel func()) {
	r, ok := root.(*Element)
	if !ok || r == nil || fn == nil {
		return func() {}
	}
	o := &observer{
		id:         d.nextObs,
		root:       r,
		attributes: make(map[string]bool, len(attributes)),
		fn:         fn,
		active:     true,
	}
	d.nextObs++
	for _, a := range attributes {
		o.attributes[a] = true
	}
	d.observers = append(d.observers, o)
	return func() {
		o.active = false
		o.pending = nil
		d.observers = slices.DeleteFunc(d.observers, func(x *observer) bool { return x == o })
	}
}

// ObserverCount returns the number of live subscriptions.
func (d *Document) ObserverCount() int {
	return len(d.observers)
}

// PendingMutations reports whether records are waiting for delivery.
func (d *Document) PendingMutations() bool {
	for _, o := range d.observers {
		if len(o.pending) > 0 {
			return true
		}
	}
	return false
}

// FlushMutations delivers queued records, one batch per observer per round,
// until no observer has pending records. It returns the number of batches.
func (d *Document) FlushMutations() int {
	batches := 0
	for round := 0; round < maxFlushRounds; round++ {
		delivered := false
		for _, o := range slices.Clone(d.observers) {
			if !o.active || len(o.pending) == 0 {
				continue
			}
			records := o.pending
			o.pending = nil
			o.fn(records)
			batches++
			delivered = true
		}
		if !delivered {
			break
		}
	}
	return batches
}

func (d *Document) record(el *Element, name, old string, had bool) {
	for _, o := range d.observers {
		if !o.active || !o.attributes[name] {
			continue
		}
		if !dom.Contains(o.root, el) {
			continue
		}
		o.pending = append(o.pending, dom.MutationRecord{
			Target:      el,
			Attribute:   name,
			OldValue:    old,
			HadOldValue: had,
		})
	}
}

// compile parses and caches a selector group. Invalid selectors cache nil.
func (d *Document) compile(selector string) cascadia.Matcher {
	if m, ok := d.selectors[selector]; ok {
		return m
	}
	var m cascadia.Matcher
	if group, err := cascadia.ParseGroup(selector); err == nil && len(group) > 0 {
		m = group
	}
	d.selectors[selector] = m
	return m
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	if el, ok := d.elements[n]; ok {
		return el
	}
	el := &Element{doc: d, node: n}
	d.elements[n] = el
	return el
}

func (d *Document) wrapAll(nodes []*html.Node) []dom.Element {
	out := make([]dom.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

func (d *Document) forget(n *html.Node) {
	walk(n, func(c *html.Node) bool {
		delete(d.elements, c)
		return true
	})
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func findAtom(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

func firstElement(root *html.Node) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val
		}
	}
	return ""
}
