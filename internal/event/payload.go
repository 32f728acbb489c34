package event

import (
	"encoding/json"
	"net/url"
	"strconv"

	"golang.org/x/net/html"

	"github.com/livefir/liveclient/internal/dom"
)

// Dispatch is one fully built client-to-server event, ready for the
// session to wrap in a wire envelope.
type Dispatch struct {
	Category Category
	ViewID   string
	Msg      json.RawMessage
	Data     json.RawMessage
	Extra    map[string]interface{}
}

// keyData mirrors the compact key event encoding.
type keyData struct {
	Key   string `json:"k"`
	Code  string `json:"kc"`
	Alt   bool   `json:"a"`
	Ctrl  bool   `json:"c"`
	Shift bool   `json:"s"`
	Meta  bool   `json:"me"`
}

type mouseData struct {
	ClientX   float64 `json:"cx"`
	ClientY   float64 `json:"cy"`
	PageX     float64 `json:"px"`
	PageY     float64 `json:"py"`
	OffsetX   float64 `json:"ox"`
	OffsetY   float64 `json:"oy"`
	MovementX float64 `json:"mx"`
	MovementY float64 `json:"my"`
	ScreenX   float64 `json:"sx"`
	ScreenY   float64 `json:"sy"`
}

type scrollData struct {
	ScrollX float64 `json:"sx"`
	ScrollY float64 `json:"sy"`
}

type formData struct {
	Query string `json:"q"`
}

type inputData struct {
	Value interface{} `json:"v"`
}

type fileData struct {
	Loaded           int64  `json:"ln"`
	Total            int64  `json:"tl"`
	LengthComputable bool   `json:"lc"`
	Name             string `json:"fn"`
	Size             int64  `json:"fs"`
	Type             string `json:"ft"`
}

// MessageToken turns a binding attribute's literal value into the wire
// message field: valid JSON passes through untouched, anything else is
// forwarded as an opaque string token.
func MessageToken(literal string) json.RawMessage {
	if json.Valid([]byte(literal)) {
		return json.RawMessage(literal)
	}
	quoted, _ := json.Marshal(literal)
	return quoted
}

// serializeForm flattens every named input, textarea and select under
// root into a query string. Radio groups contribute only the checked
// member, checkboxes are keyed by their own value attribute with a
// boolean, and multi-selects contribute each selected value.
func serializeForm(d *dom.Document, root *html.Node) string {
	q := url.Values{}
	for _, n := range dom.Elements(root, nil) {
		name, named := dom.Attr(n, "name")
		if !named || name == "" {
			continue
		}
		switch n.Data {
		case "input":
			typ, _ := dom.Attr(n, "type")
			switch typ {
			case "checkbox":
				key, ok := dom.Attr(n, "value")
				if !ok || key == "" {
					key = name
				}
				q.Set(key, strconv.FormatBool(d.Checked(n)))
			case "radio":
				if d.Checked(n) {
					val, _ := dom.Attr(n, "value")
					q.Set(name, val)
				}
			case "file":
				// file contents travel as file events, not form fields
			default:
				q.Set(name, d.Value(n))
			}
		case "textarea":
			q.Set(name, d.Value(n))
		case "select":
			selected := d.SelectedValues(n)
			if dom.HasAttr(n, "multiple") {
				for _, v := range selected {
					q.Add(name, v)
				}
			} else if len(selected) > 0 {
				q.Set(name, selected[0])
			}
		}
	}
	return q.Encode()
}

// inputValue extracts an element's own current value as the wire union:
// bool for checkboxes and radios, a string list for multi-selects, a
// plain string otherwise.
func inputValue(d *dom.Document, n *html.Node) interface{} {
	switch n.Data {
	case "input":
		typ, _ := dom.Attr(n, "type")
		if typ == "checkbox" || typ == "radio" {
			return d.Checked(n)
		}
		return d.Value(n)
	case "select":
		selected := d.SelectedValues(n)
		if dom.HasAttr(n, "multiple") {
			if selected == nil {
				return []string{}
			}
			return selected
		}
		if len(selected) > 0 {
			return selected[0]
		}
		return ""
	default:
		return d.Value(n)
	}
}

// dataAttrs collects the element's axm-data-* attributes into the
// auxiliary payload object. Values that parse as JSON are decoded,
// anything else stays a string.
func dataAttrs(n *html.Node) map[string]interface{} {
	var out map[string]interface{}
	for _, a := range n.Attr {
		if len(a.Key) <= len(AttrDataPrefix) || a.Key[:len(AttrDataPrefix)] != AttrDataPrefix {
			continue
		}
		if out == nil {
			out = make(map[string]interface{})
		}
		name := a.Key[len(AttrDataPrefix):]
		var v interface{}
		if json.Valid([]byte(a.Val)) {
			if err := json.Unmarshal([]byte(a.Val), &v); err == nil {
				out[name] = v
				continue
			}
		}
		out[name] = a.Val
	}
	return out
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
