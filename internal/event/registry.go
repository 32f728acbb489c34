package event

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/livefir/liveclient/internal/dom"
)

// Event is a synthetic browser event fired against the document. Only
// the fields for the fired category need to be populated.
type Event struct {
	Key   string
	Code  string
	Alt   bool
	Ctrl  bool
	Shift bool
	Meta  bool

	Mouse  *MouseInfo
	Scroll *ScrollInfo

	// DefaultPrevented is set by the dispatch path for every
	// non-keyboard binding; keyboard events keep their default so
	// normal key handling is not swallowed.
	DefaultPrevented bool
}

// MouseInfo carries pointer coordinates for mouse bindings.
type MouseInfo struct {
	ClientX, ClientY     float64
	PageX, PageY         float64
	OffsetX, OffsetY     float64
	MovementX, MovementY float64
	ScreenX, ScreenY     float64
}

// ScrollInfo carries the viewport scroll offsets.
type ScrollInfo struct {
	X, Y float64
}

// AfterFunc schedules f after d and returns a cancel func. The session
// injects one that runs f on its event loop; tests inject a manual
// trigger.
type AfterFunc func(d time.Duration, f func()) (cancel func())

func realAfter(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

type listener struct {
	node    *html.Node
	binding Binding
}

// Registry owns every attached listener for one document: element
// listeners keyed by node identity, plus the window-scoped list that
// must be drained and rebuilt on every patch cycle because morphing
// does not preserve non-element-scoped bindings.
type Registry struct {
	doc      *dom.Document
	send     func(Dispatch)
	after    AfterFunc
	element  map[*html.Node][]*listener
	bound    map[*html.Node]map[string]bool
	window   []*listener
	limiters map[limiterKey]*limiter
}

// NewRegistry creates a registry dispatching through send. A nil after
// uses real timers.
func NewRegistry(doc *dom.Document, send func(Dispatch), after AfterFunc) *Registry {
	if after == nil {
		after = realAfter
	}
	return &Registry{
		doc:      doc,
		send:     send,
		after:    after,
		element:  make(map[*html.Node][]*listener),
		bound:    make(map[*html.Node]map[string]bool),
		limiters: make(map[limiterKey]*limiter),
	}
}

// BindTree scans root and its descendants for element-scoped binding
// attributes and attaches exactly one listener per attribute
// occurrence. Safe to call repeatedly on the same subtree.
func (r *Registry) BindTree(root *html.Node) {
	for _, n := range dom.Elements(root, nil) {
		r.bindElement(n)
	}
}

// BindAdded attaches listeners to elements the reconciler just
// inserted; newly created nodes have no bindings by default.
func (r *Registry) BindAdded(added []*html.Node) {
	for _, n := range added {
		r.bindElement(n)
	}
}

func (r *Registry) bindElement(n *html.Node) {
	for i := range Bindings {
		b := &Bindings[i]
		if b.Window {
			continue
		}
		if !dom.HasAttr(n, b.Attr) {
			continue
		}
		if r.bound[n][b.Attr] {
			continue
		}
		if r.bound[n] == nil {
			r.bound[n] = make(map[string]bool)
		}
		r.bound[n][b.Attr] = true
		r.element[n] = append(r.element[n], &listener{node: n, binding: *b})
	}
}

// RebindWindow drains the window-scoped listener list and rescans the
// whole document for window bindings. Call after every patch cycle to
// avoid duplicate dispatch and leaked listeners.
func (r *Registry) RebindWindow() {
	r.window = r.window[:0]
	for _, n := range dom.Elements(r.doc.Root, nil) {
		for i := range Bindings {
			b := &Bindings[i]
			if !b.Window {
				continue
			}
			if dom.HasAttr(n, b.Attr) {
				r.window = append(r.window, &listener{node: n, binding: *b})
			}
		}
	}
}

// Forget drops element listeners and limiter state for removed nodes.
func (r *Registry) Forget(removed []*html.Node) {
	for _, n := range removed {
		delete(r.element, n)
		delete(r.bound, n)
		for key := range r.limiters {
			if key.node == n {
				delete(r.limiters, key)
			}
		}
	}
}

// Fire delivers a native event to an element's listeners.
func (r *Registry) Fire(target *html.Node, eventType string, ev *Event) {
	for _, l := range r.element[target] {
		if l.binding.Event == eventType {
			r.handle(l, ev)
		}
	}
}

// FireWindow delivers a window-level event (focus, blur, keydown,
// keyup, scroll) to every window-scoped listener.
func (r *Registry) FireWindow(eventType string, ev *Event) {
	for _, l := range r.window {
		if l.binding.Event == eventType {
			r.handle(l, ev)
		}
	}
}

func (r *Registry) handle(l *listener, ev *Event) {
	// Behavior derives from the node's current attributes at dispatch
	// time, not from state captured at bind time, so morphed attribute
	// changes take effect without rebinding.
	literal, ok := dom.Attr(l.node, l.binding.Attr)
	if !ok {
		return
	}
	if l.binding.Category == CategoryKey {
		if filter, ok := dom.Attr(l.node, AttrKeyFilter); ok && !strings.EqualFold(filter, ev.Key) {
			return
		}
	} else {
		ev.DefaultPrevented = true
	}

	d := Dispatch{
		Category: l.binding.Category,
		Msg:      MessageToken(literal),
		Extra:    dataAttrs(l.node),
	}
	d.ViewID, _ = dom.ContainerFor(l.node)

	switch l.binding.Category {
	case CategoryForm:
		d.Data = mustMarshal(formData{Query: serializeForm(r.doc, formRoot(l.node))})
	case CategoryInput:
		if typ, _ := dom.Attr(l.node, "type"); l.node.Data == "input" && typ == "file" {
			r.dispatchFiles(l, d)
			return
		}
		d.Data = mustMarshal(inputData{Value: inputValue(r.doc, l.node)})
	case CategoryKey:
		d.Data = mustMarshal(keyData{
			Key: ev.Key, Code: ev.Code,
			Alt: ev.Alt, Ctrl: ev.Ctrl, Shift: ev.Shift, Meta: ev.Meta,
		})
	case CategoryMouse:
		m := ev.Mouse
		if m == nil {
			m = &MouseInfo{}
		}
		d.Data = mustMarshal(mouseData{
			ClientX: m.ClientX, ClientY: m.ClientY,
			PageX: m.PageX, PageY: m.PageY,
			OffsetX: m.OffsetX, OffsetY: m.OffsetY,
			MovementX: m.MovementX, MovementY: m.MovementY,
			ScreenX: m.ScreenX, ScreenY: m.ScreenY,
		})
	case CategoryScroll:
		s := ev.Scroll
		if s == nil {
			s = &ScrollInfo{}
		}
		d.Data = mustMarshal(scrollData{ScrollX: s.X, ScrollY: s.Y})
	}

	r.dispatch(l, d)
}

func (r *Registry) dispatchFiles(l *listener, d Dispatch) {
	for _, f := range r.doc.Files(l.node) {
		fd := d
		fd.Category = CategoryFile
		total := f.Total
		if total == 0 {
			total = f.Size
		}
		fd.Data = mustMarshal(fileData{
			Loaded:           f.Loaded,
			Total:            total,
			LengthComputable: f.LengthComputable,
			Name:             f.Name,
			Size:             f.Size,
			Type:             f.Type,
		})
		r.dispatch(l, fd)
	}
}

// formRoot resolves which subtree a form-category event serializes:
// the element itself when it is a form, else its enclosing form, else
// the element's own subtree.
func formRoot(n *html.Node) *html.Node {
	if n.Data == "form" {
		return n
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return n
}

type limiterKey struct {
	node *html.Node
	attr string
}

const (
	limitNone = iota
	limitDebounce
	limitThrottle
)

// limiter implements the per-binding rate policy. Debounce holds the
// latest payload and restarts its timer on every firing; throttle sends
// immediately and drops firings until the window elapses.
type limiter struct {
	mode    int
	delay   time.Duration
	pending Dispatch
	waiting bool
	closed  bool
	cancel  func()
}

// limiterFor reads the element's rate policy. When both axm-debounce
// and axm-throttle are present, debounce wins.
func (r *Registry) limiterFor(l *listener) *limiter {
	mode, delay := limitNone, time.Duration(0)
	if ms, ok := millisAttr(l.node, AttrDebounce); ok {
		mode, delay = limitDebounce, ms
	} else if ms, ok := millisAttr(l.node, AttrThrottle); ok {
		mode, delay = limitThrottle, ms
	}
	if mode == limitNone {
		return nil
	}
	key := limiterKey{node: l.node, attr: l.binding.Attr}
	lim, ok := r.limiters[key]
	if !ok || lim.mode != mode || lim.delay != delay {
		lim = &limiter{mode: mode, delay: delay}
		r.limiters[key] = lim
	}
	return lim
}

func millisAttr(n *html.Node, attr string) (time.Duration, bool) {
	raw, ok := dom.Attr(n, attr)
	if !ok {
		return 0, false
	}
	ms, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || ms < 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

func (r *Registry) dispatch(l *listener, d Dispatch) {
	lim := r.limiterFor(l)
	if lim == nil {
		r.send(d)
		return
	}
	switch lim.mode {
	case limitDebounce:
		lim.pending = d
		if lim.waiting && lim.cancel != nil {
			lim.cancel()
		}
		lim.waiting = true
		lim.cancel = r.after(lim.delay, func() {
			lim.waiting = false
			r.send(lim.pending)
		})
	case limitThrottle:
		if lim.closed {
			return
		}
		lim.closed = true
		r.send(d)
		lim.cancel = r.after(lim.delay, func() {
			lim.closed = false
		})
	}
}
