package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Select returns every element under the document root matching a
// simple CSS selector. Supported forms are tag, #id, .class and
// [attr=value], alone or compounded (e.g. "input.search#q"), which
// covers the selectors live view servers send with class and value
// commands.
func (d *Document) Select(selector string) []*html.Node {
	sel, ok := parseSelector(selector)
	if !ok {
		return nil
	}
	return Elements(d.Root, sel.matches)
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrs   map[string]string // value "" with presentOnly below
	present []string
}

func parseSelector(s string) (*simpleSelector, bool) {
	sel := &simpleSelector{attrs: map[string]string{}}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	i := 0
	readName := func() string {
		start := i
		for i < len(s) && !strings.ContainsRune("#.[", rune(s[i])) {
			i++
		}
		return s[start:i]
	}
	if s[0] != '#' && s[0] != '.' && s[0] != '[' {
		sel.tag = strings.ToLower(readName())
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			sel.id = readName()
		case '.':
			i++
			sel.classes = append(sel.classes, readName())
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, false
			}
			body := s[i+1 : i+end]
			i += end + 1
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				val := strings.Trim(body[eq+1:], `"'`)
				sel.attrs[body[:eq]] = val
			} else {
				sel.present = append(sel.present, body)
			}
		default:
			return nil, false
		}
	}
	return sel, true
}

func (s *simpleSelector) matches(n *html.Node) bool {
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" {
		if id, ok := Attr(n, "id"); !ok || id != s.id {
			return false
		}
	}
	if len(s.classes) > 0 {
		have := classList(n)
		for _, c := range s.classes {
			if !have[c] {
				return false
			}
		}
	}
	for k, v := range s.attrs {
		if got, ok := Attr(n, k); !ok || got != v {
			return false
		}
	}
	for _, k := range s.present {
		if !HasAttr(n, k) {
			return false
		}
	}
	return true
}

func classList(n *html.Node) map[string]bool {
	out := map[string]bool{}
	if raw, ok := Attr(n, "class"); ok {
		for _, c := range strings.Fields(raw) {
			out[c] = true
		}
	}
	return out
}

func setClassList(n *html.Node, classes map[string]bool, order []string) {
	var parts []string
	seen := map[string]bool{}
	for _, c := range order {
		if classes[c] && !seen[c] {
			parts = append(parts, c)
			seen[c] = true
		}
	}
	for c := range classes {
		if !seen[c] {
			parts = append(parts, c)
		}
	}
	SetAttr(n, "class", strings.Join(parts, " "))
}

func classOrder(n *html.Node) []string {
	raw, _ := Attr(n, "class")
	return strings.Fields(raw)
}

// AddClass adds a class to every element matching the selector.
func (d *Document) AddClass(selector, class string) {
	for _, n := range d.Select(selector) {
		cl := classList(n)
		cl[class] = true
		setClassList(n, cl, classOrder(n))
	}
}

// RemoveClass removes a class from every element matching the selector.
func (d *Document) RemoveClass(selector, class string) {
	for _, n := range d.Select(selector) {
		cl := classList(n)
		delete(cl, class)
		setClassList(n, cl, classOrder(n))
	}
}

// ToggleClass toggles a class on every element matching the selector.
func (d *Document) ToggleClass(selector, class string) {
	for _, n := range d.Select(selector) {
		cl := classList(n)
		if cl[class] {
			delete(cl, class)
		} else {
			cl[class] = true
		}
		setClassList(n, cl, classOrder(n))
	}
}

// ClearValue clears the value of form controls matching the selector,
// both the rendered attribute and any live user-typed state.
func (d *Document) ClearValue(selector string) {
	for _, n := range d.Select(selector) {
		switch n.Data {
		case "input":
			RemoveAttr(n, "value")
		case "textarea":
			for n.FirstChild != nil {
				n.RemoveChild(n.FirstChild)
			}
		}
		if st, ok := d.state[n]; ok {
			st.value = ""
			st.hasValue = false
		}
	}
}

// SetTitle replaces the document title, creating the title element if
// the head exists without one.
func (d *Document) SetTitle(title string) {
	var titleNode, head *html.Node
	Walk(d.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				titleNode = n
				return false
			case "head":
				head = n
			}
		}
		return true
	})
	if titleNode == nil {
		if head == nil {
			return
		}
		titleNode = &html.Node{Type: html.ElementNode, Data: "title"}
		head.AppendChild(titleNode)
	}
	for titleNode.FirstChild != nil {
		titleNode.RemoveChild(titleNode.FirstChild)
	}
	titleNode.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

// Title returns the document title text.
func (d *Document) Title() string {
	var title string
	Walk(d.Root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = Text(n)
			return false
		}
		return true
	})
	return title
}
