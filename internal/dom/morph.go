package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Patch morphs the container's children to match newHTML with minimal
// node churn: matching nodes are updated in place so focus and live
// form state survive, unmatched old nodes are removed and unmatched new
// nodes inserted. It returns every newly inserted element (including
// descendants) so the caller can attach event bindings to them, and
// every removed element so listener state can be dropped.
func (d *Document) Patch(container *html.Node, newHTML string) (added, removed []*html.Node, err error) {
	if container == nil || container.Type != html.ElementNode {
		return nil, nil, fmt.Errorf("patch: target is not an element")
	}
	nodes, err := html.ParseFragment(strings.NewReader(newHTML), container)
	if err != nil {
		return nil, nil, fmt.Errorf("patch: parse fragment: %w", err)
	}
	d.morphChildren(container, nodes, &added, &removed)
	return added, removed, nil
}

func (d *Document) morphChildren(parent *html.Node, newChildren []*html.Node, added, removed *[]*html.Node) {
	oldChild := parent.FirstChild
	for _, nc := range newChildren {
		if oldChild != nil && compatible(oldChild, nc) {
			next := oldChild.NextSibling
			d.morphNode(oldChild, nc, added, removed)
			oldChild = next
			continue
		}
		if match := findKeyedSibling(oldChild, nc); match != nil {
			// A later sibling carries the same id: move it into place
			// instead of destroying and recreating it.
			parent.RemoveChild(match)
			if oldChild != nil {
				parent.InsertBefore(match, oldChild)
			} else {
				parent.AppendChild(match)
			}
			d.morphNode(match, nc, added, removed)
			continue
		}
		detach(nc)
		if oldChild != nil {
			parent.InsertBefore(nc, oldChild)
		} else {
			parent.AppendChild(nc)
		}
		if nc.Type == html.ElementNode {
			*added = append(*added, Elements(nc, nil)...)
		}
	}
	for oldChild != nil {
		next := oldChild.NextSibling
		if oldChild.Type == html.ElementNode {
			*removed = append(*removed, Elements(oldChild, nil)...)
		}
		d.dropState(oldChild)
		parent.RemoveChild(oldChild)
		oldChild = next
	}
}

func (d *Document) morphNode(old, new *html.Node, added, removed *[]*html.Node) {
	switch old.Type {
	case html.TextNode, html.CommentNode:
		if old.Data != new.Data {
			old.Data = new.Data
		}
	case html.ElementNode:
		d.syncAttributes(old, new)
		switch old.Data {
		case "textarea":
			d.morphTextarea(old, new)
		case "select":
			d.morphSelect(old, new, added, removed)
		default:
			d.morphChildren(old, collectChildren(new), added, removed)
		}
	}
}

// compatible reports whether an old node can be morphed into a new one
// rather than replaced. Elements must share the tag, and ids must
// agree so keyed content is never merged across identities.
func compatible(old, new *html.Node) bool {
	if old.Type != new.Type {
		return false
	}
	if old.Type != html.ElementNode {
		return true
	}
	if old.Data != new.Data {
		return false
	}
	oldID, _ := Attr(old, "id")
	newID, _ := Attr(new, "id")
	return oldID == newID
}

func findKeyedSibling(from, new *html.Node) *html.Node {
	if new.Type != html.ElementNode {
		return nil
	}
	id, ok := Attr(new, "id")
	if !ok {
		return nil
	}
	for n := from; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == new.Data {
			if nid, ok := Attr(n, "id"); ok && nid == id {
				return n
			}
		}
	}
	return nil
}

// syncAttributes adopts the new node's attributes onto the old node,
// except the ones that reflect user-driven state: the live value of
// text inputs, checked on radios and checkboxes, and selected on
// options inside multi-selects. The server renders its last known
// state there, not the user's in-progress edits.
func (d *Document) syncAttributes(old, new *html.Node) {
	preserve := map[string]bool{}
	if old.Data == "input" {
		typ, ok := Attr(new, "type")
		if !ok {
			typ, _ = Attr(old, "type")
		}
		switch typ {
		case "radio", "checkbox":
			preserve["checked"] = true
		default:
			preserve["value"] = true
		}
	}
	if old.Data == "option" {
		if sel := ancestorSelect(old); sel != nil && HasAttr(sel, "multiple") {
			preserve["selected"] = true
		}
	}

	newKeys := make(map[string]bool, len(new.Attr))
	for _, a := range new.Attr {
		newKeys[a.Key] = true
		if preserve[a.Key] {
			continue
		}
		SetAttr(old, a.Key, a.Val)
	}
	for i := len(old.Attr) - 1; i >= 0; i-- {
		k := old.Attr[i].Key
		if !newKeys[k] && !preserve[k] {
			old.Attr = append(old.Attr[:i], old.Attr[i+1:]...)
		}
	}
}

// morphTextarea updates a textarea's content only when the user has no
// in-progress edit, so typing is never visually reset by a round trip.
func (d *Document) morphTextarea(old, new *html.Node) {
	if st, ok := d.state[old]; ok && st.hasValue {
		return
	}
	newText := Text(new)
	if Text(old) == newText {
		return
	}
	for old.FirstChild != nil {
		old.RemoveChild(old.FirstChild)
	}
	if newText != "" {
		old.AppendChild(&html.Node{Type: html.TextNode, Data: newText})
	}
}

// morphSelect morphs option children, then for single selects restores
// the selection the user had: once mounted, a single select's value is
// driver-controlled, not server-controlled.
func (d *Document) morphSelect(old, new *html.Node, added, removed *[]*html.Node) {
	multiple := HasAttr(old, "multiple") || HasAttr(new, "multiple")
	var keep []string
	if !multiple {
		keep = d.SelectedValues(old)
	}
	d.morphChildren(old, collectChildren(new), added, removed)
	if multiple || len(keep) == 0 {
		return
	}
	for _, opt := range Elements(old, func(n *html.Node) bool { return n.Data == "option" }) {
		if optionValue(opt) == keep[0] {
			SetAttr(opt, "selected", "")
			d.SetChecked(opt, true)
		} else {
			RemoveAttr(opt, "selected")
			d.SetChecked(opt, false)
		}
	}
}

func ancestorSelect(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "select" {
			return p
		}
	}
	return nil
}

func collectChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// detach unlinks a node from whatever tree the fragment parser left it
// in so it can be inserted elsewhere.
func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	n.Parent = nil
	n.PrevSibling = nil
	n.NextSibling = nil
}
