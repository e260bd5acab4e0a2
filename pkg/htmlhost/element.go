package htmlhost

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/go-drift/databind/pkg/dom"
)

// Element wraps an element node. Wrappers are cached per node, so the same
// node always yields the same *Element.
type Element struct {
	doc   *Document
	node  *html.Node
	props map[string]any
}

var _ dom.Element = (*Element)(nil)

// Node returns the underlying node.
func (e *Element) Node() *html.Node { return e.node }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Attribute implements dom.Element.
func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AttributeOr returns the attribute value or def when absent.
func (e *Element) AttributeOr(name, def string) string {
	if v, ok := e.Attribute(name); ok {
		return v
	}
	return def
}

// SetAttribute implements dom.Element. Every write is recorded for
// observers, even when the value does not change.
func (e *Element) SetAttribute(name, value string) {
	old, had := e.Attribute(name)
	if had {
		for i := range e.node.Attr {
			if e.node.Attr[i].Namespace == "" && e.node.Attr[i].Key == name {
				e.node.Attr[i].Val = value
				break
			}
		}
	} else {
		e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	}
	e.doc.record(e, name, old, had)
}

// RemoveAttribute implements dom.Element.
func (e *Element) RemoveAttribute(name string) {
	old, had := e.Attribute(name)
	if !had {
		return
	}
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
	e.doc.record(e, name, old, had)
}

// Parent implements dom.Element.
func (e *Element) Parent() dom.Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// Matches implements dom.Element.
func (e *Element) Matches(selector string) bool {
	m := e.doc.compile(selector)
	return m != nil && m.Match(e.node)
}

// Closest implements dom.Element.
func (e *Element) Closest(selector string) dom.Element {
	m := e.doc.compile(selector)
	if m == nil {
		return nil
	}
	for n := e.node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if m.Match(n) {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// QueryAll implements dom.Element.
func (e *Element) QueryAll(selector string) []dom.Element {
	m := e.doc.compile(selector)
	if m == nil {
		return nil
	}
	return e.doc.wrapAll(cascadia.QueryAll(e.node, m))
}

// Dataset implements dom.Element. Keys keep their hyphenated form.
func (e *Element) Dataset() map[string]string {
	out := make(map[string]string)
	for _, a := range e.node.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, "data-") && len(a.Key) > len("data-") {
			out[strings.TrimPrefix(a.Key, "data-")] = a.Val
		}
	}
	return out
}

// Content implements dom.Element by rendering the children.
func (e *Element) Content() string {
	var buf bytes.Buffer
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// SetContent implements dom.Element by parsing content as a fragment in the
// context of this element. Unparseable content is inserted as text.
func (e *Element) SetContent(content string) {
	nodes, err := html.ParseFragment(strings.NewReader(content), e.node)
	if err != nil {
		nodes = []*html.Node{{Type: html.TextNode, Data: content}}
	}
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		e.doc.forget(c)
		c = next
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
}

// Text returns the concatenated text of the element's subtree.
func (e *Element) Text() string {
	var sb strings.Builder
	walk(e.node, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		return true
	})
	return sb.String()
}

// Property implements dom.Element.
func (e *Element) Property(name string) (any, bool) {
	v, ok := e.props[name]
	return v, ok
}

// SetProperty implements dom.Element. A nil value deletes the property.
func (e *Element) SetProperty(name string, value any) {
	if value == nil {
		delete(e.props, name)
		return
	}
	if e.props == nil {
		e.props = make(map[string]any)
	}
	e.props[name] = value
}

// String describes the element as tag#id.class.
func (e *Element) String() string {
	var sb strings.Builder
	sb.WriteString(e.node.Data)
	if id := attr(e.node, "id"); id != "" {
		sb.WriteString("#")
		sb.WriteString(id)
	}
	if class := strings.Fields(attr(e.node, "class")); len(class) > 0 {
		sb.WriteString(".")
		sb.WriteString(strings.Join(class, "."))
	}
	return sb.String()
}
