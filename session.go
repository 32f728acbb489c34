package liveclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/net/html"

	"github.com/livefir/liveclient/internal/dom"
	"github.com/livefir/liveclient/internal/event"
)

// view is the per-container state: the single owned template plus the
// DOM node diffs are applied under. A fresh view is established by each
// initial-render message; reconnects never carry template state over.
type view struct {
	id        string
	template  *Template
	container *html.Node
}

// Session owns the websocket connection for one page, dispatches
// inbound messages by topic to the render pipeline and manages
// reconnect-on-close. All message handling, DOM mutation and event
// dispatch runs on the session's single event loop goroutine.
type Session struct {
	cfg Config
	doc *dom.Document
	reg *event.Registry

	views map[string]*view

	loop chan func()
	done chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	started      bool
	boundOnce    bool
	terminal     atomic.Bool
	reconnecting bool

	after   event.AfterFunc
	logf    func(format string, args ...interface{})
	onError func(error)
	onPatch func(viewID string)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger replaces the default log.Printf logger.
func WithLogger(logf func(format string, args ...interface{})) Option {
	return func(s *Session) { s.logf = logf }
}

// WithErrorObserver registers a callback for transport and view
// errors. Errors are surfaced, not fatal: the session keeps running or
// reconnects on its own.
func WithErrorObserver(fn func(error)) Option {
	return func(s *Session) { s.onError = fn }
}

// WithPatchObserver registers a callback invoked on the session loop
// after a view's DOM has been updated.
func WithPatchObserver(fn func(viewID string)) Option {
	return func(s *Session) { s.onPatch = fn }
}

// withAfter injects the timer implementation, used by tests for
// deterministic debounce, throttle and reconnect timing.
func withAfter(after event.AfterFunc) Option {
	return func(s *Session) { s.after = after }
}

// NewSession creates a session over an already parsed document. Connect
// must be called to establish the socket.
func NewSession(doc *dom.Document, cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:   cfg,
		doc:   doc,
		views: make(map[string]*view),
		loop:  make(chan func(), 64),
		done:  make(chan struct{}),
		logf:  log.Printf,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.after == nil {
		s.after = func(d time.Duration, f func()) func() {
			t := time.AfterFunc(d, func() { s.post(f) })
			return func() { t.Stop() }
		}
	}
	s.reg = event.NewRegistry(doc, s.sendEvent, func(d time.Duration, f func()) func() {
		return s.after(d, f)
	})
	return s
}

// Document returns the session's document tree.
func (s *Session) Document() *dom.Document { return s.doc }

// Events returns the binding registry, for firing synthetic events.
// Fire through Post so the dispatch runs on the session loop.
func (s *Session) Events() *event.Registry { return s.reg }

// Post schedules f on the session's event loop. After Close the
// closure is dropped; callers waiting on work they posted should also
// watch Done.
func (s *Session) Post(f func()) {
	s.post(f)
}

// Done is closed when the session loop has been shut down by Close.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) post(f func()) {
	select {
	case s.loop <- f:
	case <-s.done:
	}
}

// Connect dials the server and starts the session loop. On connection
// open a mount notification is sent for every live view container, and
// on the first connection the whole document gets its event bindings.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if !s.started {
		s.started = true
		go s.run()
	}
	return s.dial(ctx)
}

func (s *Session) run() {
	for {
		select {
		case f := <-s.loop:
			f()
		case <-s.done:
			return
		}
	}
}

func (s *Session) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.post(func() { s.onOpen() })
	go s.readLoop(conn)
	return nil
}

func (s *Session) onOpen() {
	// Fresh session: templates never survive a (re)connection.
	s.views = make(map[string]*view)
	for id, container := range s.doc.Containers() {
		s.views[id] = &view{id: id, container: container}
		if err := s.write(ClientMessage{Topic: TopicMount, ViewID: id}); err != nil {
			s.surface(fmt.Errorf("mount %s: %w", id, err))
		}
	}
	if !s.boundOnce {
		s.boundOnce = true
		s.reg.BindTree(s.doc.Root)
		s.reg.RebindWindow()
	}
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.post(func() { s.onClose(err) })
			return
		}
		msg := data
		s.post(func() { s.handleMessage(msg) })
	}
}

func (s *Session) onClose(cause error) {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	if s.terminal.Load() {
		return
	}
	if !websocket.IsCloseError(cause, websocket.CloseNormalClosure) {
		s.surface(fmt.Errorf("connection lost: %w", cause))
	}
	s.scheduleReconnect()
}

func (s *Session) scheduleReconnect() {
	if s.reconnecting || s.terminal.Load() {
		return
	}
	s.reconnecting = true
	s.after(s.cfg.ReconnectInterval, func() {
		s.reconnecting = false
		if s.terminal.Load() {
			return
		}
		if err := s.dial(context.Background()); err != nil {
			s.surface(err)
			s.scheduleReconnect()
		}
	})
}

// handleMessage dispatches one inbound message. Decode errors are
// logged and dropped so unknown topics stay forward compatible; state
// errors drop the connection and rely on reconnect-with-fresh-state.
func (s *Session) handleMessage(data []byte) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logf("liveclient: malformed message dropped: %v", err)
		return
	}

	var err error
	switch msg.Topic {
	case TopicInitialRender:
		err = s.handleInitialRender(msg)
	case TopicRendered:
		err = s.handleRendered(msg)
	case TopicJsCommands:
		err = s.handleJsCommands(msg)
	case TopicHealth:
		err = s.write(ClientMessage{Topic: TopicHealth})
	case TopicViewGone:
		s.terminal.Store(true)
		s.closeConn()
		return
	default:
		s.logf("liveclient: unknown topic %q dropped", msg.Topic)
		return
	}

	if err == nil {
		return
	}
	if errors.Is(err, ErrState) {
		// Cannot safely keep rendering this view; reconnect for a
		// fresh initial render.
		s.surface(err)
		s.closeConn()
		s.scheduleReconnect()
		return
	}
	s.logf("liveclient: %s message dropped: %v", msg.Topic, err)
}

func (s *Session) resolveView(id string) (*view, error) {
	if id == "" && len(s.views) == 1 {
		for _, v := range s.views {
			return v, nil
		}
	}
	if v, ok := s.views[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: view %q", ErrNoContainer, id)
}

func (s *Session) handleInitialRender(msg ServerMessage) error {
	var tmpl Template
	if err := json.Unmarshal(msg.Data, &tmpl); err != nil {
		return err
	}
	v, err := s.resolveView(msg.ViewID)
	if err != nil {
		return err
	}
	v.template = &tmpl
	return s.renderView(v)
}

func (s *Session) handleRendered(msg ServerMessage) error {
	if len(msg.Data) == 0 || string(msg.Data) == "null" {
		return nil
	}
	v, err := s.resolveView(msg.ViewID)
	if err != nil {
		return err
	}
	if v.template == nil {
		return fmt.Errorf("%w: diff for view %q before initial render", ErrState, v.id)
	}
	var diff TemplateDiff
	if err := json.Unmarshal(msg.Data, &diff); err != nil {
		return err
	}
	if err := v.template.Merge(&diff); err != nil {
		return err
	}
	return s.renderView(v)
}

func (s *Session) renderView(v *view) error {
	rendered := v.template.Render()
	if s.cfg.NormalizePatches {
		rendered = normalizeHTML(rendered)
	}
	added, removed, err := s.doc.Patch(v.container, rendered)
	if err != nil {
		return err
	}
	s.reg.Forget(removed)
	s.reg.BindAdded(added)
	s.reg.RebindWindow()
	if s.onPatch != nil {
		s.onPatch(v.id)
	}
	return nil
}

func (s *Session) handleJsCommands(msg ServerMessage) error {
	cmds, err := decodeJsCommands(msg.Data)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		cmd := cmd
		if cmd.DelayMs != nil && *cmd.DelayMs > 0 {
			s.after(time.Duration(*cmd.DelayMs)*time.Millisecond, func() {
				s.applyCommand(cmd)
			})
		} else {
			s.applyCommand(cmd)
		}
	}
	return nil
}

func (s *Session) applyCommand(cmd JsCommand) {
	switch cmd.Kind.Type {
	case JsNavigateTo, JsHistoryPushState:
		s.doc.Location = cmd.Kind.URI
	case JsAddClass:
		s.doc.AddClass(cmd.Kind.Selector, cmd.Kind.Class)
	case JsRemoveClass:
		s.doc.RemoveClass(cmd.Kind.Selector, cmd.Kind.Class)
	case JsToggleClass:
		s.doc.ToggleClass(cmd.Kind.Selector, cmd.Kind.Class)
	case JsClearValue:
		s.doc.ClearValue(cmd.Kind.Selector)
	case JsSetTitle:
		s.doc.SetTitle(cmd.Kind.Title)
	}
}

// sendEvent wraps a built event payload in the wire envelope. Invoked
// by the binding registry on the session loop.
func (s *Session) sendEvent(d event.Dispatch) {
	msg := ClientMessage{
		Topic:  string(d.Category),
		ViewID: d.ViewID,
		Msg:    d.Msg,
		Data:   d.Data,
		Extra:  d.Extra,
	}
	if err := s.write(msg); err != nil {
		s.surface(fmt.Errorf("send %s event: %w", d.Category, err))
	}
}

func (s *Session) write(v interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	return s.conn.WriteJSON(v)
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) surface(err error) {
	if s.onError != nil {
		s.onError(err)
		return
	}
	s.logf("liveclient: %v", err)
}

// Close terminates the session for good: the connection is closed and
// no reconnect is attempted.
func (s *Session) Close() error {
	s.terminal.Store(true)
	s.closeConn()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
