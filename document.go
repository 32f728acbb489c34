package liveclient

import (
	"io"

	"golang.org/x/net/html"

	"github.com/livefir/liveclient/internal/dom"
	"github.com/livefir/liveclient/internal/event"
)

// Aliases re-exporting the engine types callers need to construct:
// the document tree a session owns and the synthetic events fired
// against it.
type (
	// Document is the mutable page tree a Session reads and patches.
	Document = dom.Document

	// FileInfo describes a file chosen on a file input.
	FileInfo = dom.FileInfo

	// Event is a synthetic browser event for Registry.Fire/FireWindow.
	Event = event.Event

	// MouseInfo carries pointer coordinates for mouse events.
	MouseInfo = event.MouseInfo

	// ScrollInfo carries viewport scroll offsets for scroll events.
	ScrollInfo = event.ScrollInfo
)

// ContainerAttr is the attribute marking live view containers.
const ContainerAttr = dom.ContainerAttr

// ParseDocument parses a full HTML page into a Document.
func ParseDocument(r io.Reader) (*Document, error) {
	return dom.ParseDocument(r)
}

// ParseDocumentString is ParseDocument over a string.
func ParseDocumentString(s string) (*Document, error) {
	return dom.ParseDocumentString(s)
}

// FindByAttr returns the first element under root with the given
// attribute value, or nil.
func FindByAttr(root *html.Node, key, val string) *html.Node {
	return dom.FindByAttr(root, key, val)
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	return dom.InnerHTML(n)
}

// Text returns the concatenated text content of n's subtree.
func Text(n *html.Node) string {
	return dom.Text(n)
}
