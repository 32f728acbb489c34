package liveclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Dynamic is the value held by one dynamic slot of a Template: a literal
// string, a nested template, or a keyed loop. The three implementations
// are DynString, *Template and *Loop; consumption sites switch
// exhaustively over them.
type Dynamic interface {
	isDynamic()
	renderTo(b *strings.Builder)
}

// DynString is a literal string slot value, appended verbatim.
type DynString string

func (DynString) isDynamic() {}

func (s DynString) renderTo(b *strings.Builder) { b.WriteString(string(s)) }

// Template is the recursive fixed/dynamic representation of rendered
// HTML sent on initial render. Fixed fragments interleave with dynamic
// slots: fixed[i] is written immediately before slot i resolves, and the
// final fixed fragment has no following slot. A missing slot renders as
// the empty string.
type Template struct {
	Fixed []string
	Slots map[int]Dynamic
}

func (*Template) isDynamic() {}

func (t *Template) renderTo(b *strings.Builder) {
	if len(t.Fixed) == 0 {
		// A template materialized from a diff that never carried fixed
		// fragments: render the slots back to back in index order.
		for _, i := range sortedSlotIndexes(t.Slots) {
			t.Slots[i].renderTo(b)
		}
		return
	}
	for i, f := range t.Fixed {
		b.WriteString(f)
		if i == len(t.Fixed)-1 {
			break
		}
		if d, ok := t.Slots[i]; ok {
			d.renderTo(b)
		}
	}
}

// Render builds the flat HTML string for the template. It is pure: the
// template is not mutated and repeated calls yield the same result.
func (t *Template) Render() string {
	var b strings.Builder
	t.renderTo(&b)
	return b.String()
}

// Loop is a template whose dynamic content repeats once per keyed entry,
// all entries sharing one fixed fragment layout. Keys keeps the
// server's delivery order; the client never reorders entries.
type Loop struct {
	Fixed   []string
	Keys    []string
	Entries map[string]map[int]Dynamic
}

func (*Loop) isDynamic() {}

func (l *Loop) renderTo(b *strings.Builder) {
	for _, key := range l.Keys {
		entry, ok := l.Entries[key]
		if !ok {
			continue
		}
		iter := Template{Fixed: l.Fixed, Slots: entry}
		iter.renderTo(b)
	}
}

// wire encoding keys, shared with the diff codec
const (
	fixedKey   = "f"
	entriesKey = "e"
	keyOrder   = "ko"
)

// UnmarshalJSON decodes the wire form of a template: an object with the
// fixed fragments under "f" and dynamic slots under decimal string keys.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: template is not an object: %v", ErrDecode, err)
	}
	return t.decodeRaw(raw)
}

func (t *Template) decodeRaw(raw map[string]json.RawMessage) error {
	t.Fixed = nil
	t.Slots = make(map[int]Dynamic)
	for k, v := range raw {
		if k == fixedKey {
			if err := json.Unmarshal(v, &t.Fixed); err != nil {
				return fmt.Errorf("%w: fixed fragments: %v", ErrDecode, err)
			}
			continue
		}
		idx, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("%w: unexpected template key %q", ErrDecode, k)
		}
		d, err := decodeDynamic(v)
		if err != nil {
			return fmt.Errorf("slot %d: %w", idx, err)
		}
		t.Slots[idx] = d
	}
	return nil
}

// decodeDynamic decodes a single slot value. Loops are tagged by the
// presence of the entries key; a bare array is a protocol violation.
func decodeDynamic(raw json.RawMessage) (Dynamic, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, fmt.Errorf("%w: null dynamic value outside a diff", ErrDecode)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return DynString(s), nil
	case '[':
		return nil, fmt.Errorf("%w: bare array in dynamic slot", ErrDecode)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if _, isLoop := obj[entriesKey]; isLoop {
			return decodeLoop(obj)
		}
		var t Template
		if err := t.decodeRaw(obj); err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: dynamic slot is neither string, object nor loop", ErrDecode)
	}
}

func decodeLoop(obj map[string]json.RawMessage) (*Loop, error) {
	l := &Loop{Entries: make(map[string]map[int]Dynamic)}
	if rawFixed, ok := obj[fixedKey]; ok {
		if err := json.Unmarshal(rawFixed, &l.Fixed); err != nil {
			return nil, fmt.Errorf("%w: loop fixed fragments: %v", ErrDecode, err)
		}
	}
	var rawEntries map[string]map[string]json.RawMessage
	if err := json.Unmarshal(obj[entriesKey], &rawEntries); err != nil {
		return nil, fmt.Errorf("%w: loop entries: %v", ErrDecode, err)
	}
	for key, rawSlots := range rawEntries {
		slots, err := decodeEntrySlots(rawSlots)
		if err != nil {
			return nil, fmt.Errorf("loop entry %q: %w", key, err)
		}
		l.Entries[key] = slots
	}
	if rawOrder, ok := obj[keyOrder]; ok {
		if err := json.Unmarshal(rawOrder, &l.Keys); err != nil {
			return nil, fmt.Errorf("%w: loop key order: %v", ErrDecode, err)
		}
	} else {
		l.Keys = sortedEntryKeys(rawEntries)
	}
	return l, nil
}

func decodeEntrySlots(rawSlots map[string]json.RawMessage) (map[int]Dynamic, error) {
	slots := make(map[int]Dynamic, len(rawSlots))
	for k, v := range rawSlots {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: unexpected entry key %q", ErrDecode, k)
		}
		d, err := decodeDynamic(v)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", idx, err)
		}
		slots[idx] = d
	}
	return slots, nil
}

func sortedSlotIndexes(slots map[int]Dynamic) []int {
	idxs := make([]int, 0, len(slots))
	for i := range slots {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

// sortedEntryKeys orders keys numerically where possible, lexically
// otherwise. Used only when the server omitted an explicit key order.
func sortedEntryKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// MarshalJSON emits the same wire form UnmarshalJSON accepts. The
// client only needs this for tests and tooling; the server is the
// normal producer.
func (t *Template) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(t.Slots)+1)
	if t.Fixed != nil {
		out[fixedKey] = t.Fixed
	}
	for idx, d := range t.Slots {
		out[strconv.Itoa(idx)] = d
	}
	return json.Marshal(out)
}

func (s DynString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

func (l *Loop) MarshalJSON() ([]byte, error) {
	entries := make(map[string]map[string]Dynamic, len(l.Entries))
	for key, slots := range l.Entries {
		e := make(map[string]Dynamic, len(slots))
		for idx, d := range slots {
			e[strconv.Itoa(idx)] = d
		}
		entries[key] = e
	}
	return json.Marshal(map[string]interface{}{
		fixedKey:   l.Fixed,
		entriesKey: entries,
		keyOrder:   l.Keys,
	})
}
