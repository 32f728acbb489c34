package liveclient

import (
	"encoding/json"
	"fmt"
)

// Server to client topics. Unknown topics are logged and dropped so
// newer servers can add message kinds without breaking older clients.
const (
	TopicInitialRender = "i" // full Template, establishes view state
	TopicRendered      = "r" // TemplateDiff, null means no change
	TopicJsCommands    = "j" // batch of JsCommand
	TopicHealth        = "h" // keepalive ping, echoed back
	TopicViewGone      = "e" // terminal: stop reconnecting
)

// ServerMessage is the tagged envelope for everything the server sends:
// {"t": topic, "v": viewID, "d": payload}.
type ServerMessage struct {
	Topic  string          `json:"t"`
	ViewID string          `json:"v,omitempty"`
	Data   json.RawMessage `json:"d,omitempty"`
}

// ClientMessage is the envelope for everything the client sends. The
// message field carries the attribute's literal value (a raw token or a
// JSON payload) identifying the logical action; the data field is the
// category-specific event payload; extras are the element's axm-data-*
// attributes.
type ClientMessage struct {
	Topic  string                 `json:"t"`
	ViewID string                 `json:"v,omitempty"`
	Msg    json.RawMessage        `json:"m,omitempty"`
	Data   json.RawMessage        `json:"d,omitempty"`
	Extra  map[string]interface{} `json:"a,omitempty"`
}

// Client to server topics that do not originate from element bindings.
const (
	TopicMount = "mount" // sent once per container on connection open
)

// JsCommand is a browser-side action the server can send along with
// view updates, optionally delayed by DelayMs milliseconds.
type JsCommand struct {
	DelayMs *int64        `json:"delay_ms"`
	Kind    JsCommandKind `json:"kind"`
}

// JsCommandKind is the internally tagged command union. Only the fields
// that belong to the tagged kind are populated.
type JsCommandKind struct {
	Type     string `json:"t"`
	URI      string `json:"uri,omitempty"`
	Selector string `json:"selector,omitempty"`
	Class    string `json:"klass,omitempty"`
	Title    string `json:"title,omitempty"`
}

// JsCommand kinds.
const (
	JsNavigateTo       = "navigate_to"
	JsAddClass         = "add_class"
	JsRemoveClass      = "remove_class"
	JsToggleClass      = "toggle_class"
	JsClearValue       = "clear_value"
	JsSetTitle         = "set_title"
	JsHistoryPushState = "history_push_state"
)

func decodeJsCommands(raw json.RawMessage) ([]JsCommand, error) {
	var cmds []JsCommand
	if err := json.Unmarshal(raw, &cmds); err != nil {
		return nil, fmt.Errorf("%w: js command batch: %v", ErrDecode, err)
	}
	for i, cmd := range cmds {
		switch cmd.Kind.Type {
		case JsNavigateTo, JsAddClass, JsRemoveClass, JsToggleClass,
			JsClearValue, JsSetTitle, JsHistoryPushState:
		default:
			return nil, fmt.Errorf("%w: unknown js command %q at %d", ErrDecode, cmd.Kind.Type, i)
		}
	}
	return cmds, nil
}
