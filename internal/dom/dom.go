// Package dom provides the mutable document tree the client engine
// reads and patches. It wraps golang.org/x/net/html nodes with the
// control-state bookkeeping a live page needs: user-edited input
// values, checkbox/radio checked state and selection state, all of
// which exist outside the serialized HTML attributes.
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ContainerAttr is the id-bearing attribute that marks live view
// containers in the document.
const ContainerAttr = "data-lvt-id"

// FileInfo describes a file chosen on a file input, used to build file
// upload progress events.
type FileInfo struct {
	Name             string
	Size             int64
	Type             string
	LastModified     int64
	Loaded           int64
	Total            int64
	LengthComputable bool
}

// controlState carries the live, user-driven state of a form control
// that the server-rendered HTML does not know about yet.
type controlState struct {
	value      string
	hasValue   bool
	checked    bool
	hasChecked bool
	files      []FileInfo
}

// Document owns one parsed HTML tree plus the live control state keyed
// by node identity. Morphing keeps matched nodes alive, so the state
// map survives patches.
type Document struct {
	Root *html.Node

	// Location holds the last navigate_to or history_push_state URI.
	Location string

	state map[*html.Node]*controlState
}

// ParseDocument parses a full HTML page.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{Root: root, state: make(map[*html.Node]*controlState)}, nil
}

// ParseDocumentString is ParseDocument over a string.
func ParseDocumentString(s string) (*Document, error) {
	return ParseDocument(strings.NewReader(s))
}

// Attr returns the value of an attribute and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes an attribute if present.
func RemoveAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// HasAttr reports attribute presence.
func HasAttr(n *html.Node, key string) bool {
	_, ok := Attr(n, key)
	return ok
}

// Walk visits n and every descendant in document order. Returning false
// from fn stops the walk.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// Elements collects every element under root (inclusive) that the
// filter accepts.
func Elements(root *html.Node, filter func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (filter == nil || filter(n)) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindByAttr returns the first element under root with the given
// attribute value, or nil.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, key); ok && v == val {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// Containers returns every live view container in the document paired
// with its id.
func (d *Document) Containers() map[string]*html.Node {
	out := make(map[string]*html.Node)
	Walk(d.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if id, ok := Attr(n, ContainerAttr); ok {
				out[id] = n
			}
		}
		return true
	})
	return out
}

// Container returns the live view container with the given id, or nil.
func (d *Document) Container(id string) *html.Node {
	return FindByAttr(d.Root, ContainerAttr, id)
}

// ContainerFor walks up from n to the enclosing live view container and
// returns its id.
func ContainerFor(n *html.Node) (string, bool) {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			if id, ok := Attr(p, ContainerAttr); ok {
				return id, true
			}
		}
	}
	return "", false
}

// Text returns the concatenated text content of n's subtree.
func Text(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// Render serializes a node subtree back to HTML.
func Render(n *html.Node) string {
	var b strings.Builder
	renderNode(&b, n)
	return b.String()
}

// InnerHTML serializes only the children of n.
func InnerHTML(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(&b, c)
	}
	return b.String()
}

func renderNode(w *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if n.Parent != nil && n.Parent.Type == html.ElementNode && rawTextElements[n.Parent.Data] {
			w.WriteString(n.Data)
			return
		}
		w.WriteString(html.EscapeString(n.Data))
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(w, c)
		}
	case html.ElementNode:
		w.WriteString("<")
		w.WriteString(n.Data)
		for _, attr := range n.Attr {
			w.WriteString(" ")
			w.WriteString(attr.Key)
			w.WriteString(`="`)
			w.WriteString(html.EscapeString(attr.Val))
			w.WriteString(`"`)
		}
		w.WriteString(">")
		if isVoidElement(n.Data) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderNode(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.Data)
		w.WriteString(">")
	}
}

// rawTextElements hold literal child text that must not be
// entity-escaped when serializing.
var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "noscript": true,
	"plaintext": true, "script": true, "style": true, "xmp": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func isVoidElement(tagName string) bool {
	return voidElements[strings.ToLower(tagName)]
}

func (d *Document) stateFor(n *html.Node) *controlState {
	st, ok := d.state[n]
	if !ok {
		st = &controlState{}
		d.state[n] = st
	}
	return st
}

// SetValue records a live value for an input or textarea, as typing
// does in a browser.
func (d *Document) SetValue(n *html.Node, value string) {
	st := d.stateFor(n)
	st.value = value
	st.hasValue = true
}

// Value returns the control's live value: the user-edited one when
// present, else the server-rendered value attribute (or text content
// for textareas).
func (d *Document) Value(n *html.Node) string {
	if st, ok := d.state[n]; ok && st.hasValue {
		return st.value
	}
	if n.Data == "textarea" {
		return Text(n)
	}
	v, _ := Attr(n, "value")
	return v
}

// SetChecked records live checked state for checkboxes and radios, and
// live selected state for options.
func (d *Document) SetChecked(n *html.Node, checked bool) {
	st := d.stateFor(n)
	st.checked = checked
	st.hasChecked = true
}

// Checked returns live checked state, falling back to the checked (or
// selected, for options) attribute.
func (d *Document) Checked(n *html.Node) bool {
	if st, ok := d.state[n]; ok && st.hasChecked {
		return st.checked
	}
	if n.Data == "option" {
		return HasAttr(n, "selected")
	}
	return HasAttr(n, "checked")
}

// SetFiles attaches chosen files to a file input.
func (d *Document) SetFiles(n *html.Node, files []FileInfo) {
	d.stateFor(n).files = files
}

// Files returns the files chosen on a file input.
func (d *Document) Files(n *html.Node) []FileInfo {
	if st, ok := d.state[n]; ok {
		return st.files
	}
	return nil
}

// SelectedValues returns the values of the selected options of a
// select element, honoring live selection state.
func (d *Document) SelectedValues(sel *html.Node) []string {
	var out []string
	for _, opt := range Elements(sel, func(n *html.Node) bool { return n.Data == "option" }) {
		if d.Checked(opt) {
			out = append(out, optionValue(opt))
		}
	}
	return out
}

func optionValue(opt *html.Node) string {
	if v, ok := Attr(opt, "value"); ok {
		return v
	}
	return strings.TrimSpace(Text(opt))
}

// dropState forgets control state for an entire removed subtree.
func (d *Document) dropState(n *html.Node) {
	Walk(n, func(c *html.Node) bool {
		delete(d.state, c)
		return true
	})
}
