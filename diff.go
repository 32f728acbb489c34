package liveclient

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DiffValue is one slot entry of a TemplateDiff: a full string
// replacement, a recursive template patch, a loop patch, or an explicit
// delete (wire null). Implementations are DiffString, *TemplateDiff,
// *LoopDiff and DiffDelete.
type DiffValue interface {
	isDiffValue()
}

// DiffString replaces the slot with a literal string, discarding any
// structured value previously held there.
type DiffString string

func (DiffString) isDiffValue() {}

// DiffDelete removes the slot entirely (wire null).
type DiffDelete struct{}

func (DiffDelete) isDiffValue() {}

// TemplateDiff is the partial patch counterpart of Template. A nil
// Fixed means the fixed fragments are unchanged; a present Fixed
// replaces them wholesale.
type TemplateDiff struct {
	Fixed []string
	Slots map[int]DiffValue
}

func (*TemplateDiff) isDiffValue() {}

// LoopDiff patches a Loop. An entry mapped to nil removes that key; a
// non-nil entry patches (or creates) the keyed entry. NewKeys lists
// keys absent from the current loop in delivery order so insertion
// order survives the JSON object encoding.
type LoopDiff struct {
	Fixed   []string
	Entries map[string]*LoopEntryDiff
	NewKeys []string
}

func (*LoopDiff) isDiffValue() {}

// LoopEntryDiff is the per-entry slot patch of a LoopDiff.
type LoopEntryDiff struct {
	Slots map[int]DiffValue
}

// UnmarshalJSON decodes the wire form of a diff. The shape space
// mirrors Template with two extensions: null means delete, and loop
// diffs always carry the entries key so they stay distinguishable from
// nested template diffs.
func (d *TemplateDiff) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: diff is not an object: %v", ErrDecode, err)
	}
	return d.decodeRaw(raw)
}

func (d *TemplateDiff) decodeRaw(raw map[string]json.RawMessage) error {
	d.Fixed = nil
	d.Slots = make(map[int]DiffValue)
	for k, v := range raw {
		if k == fixedKey {
			if err := json.Unmarshal(v, &d.Fixed); err != nil {
				return fmt.Errorf("%w: diff fixed fragments: %v", ErrDecode, err)
			}
			continue
		}
		idx, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("%w: unexpected diff key %q", ErrDecode, k)
		}
		dv, err := decodeDiffValue(v)
		if err != nil {
			return fmt.Errorf("slot %d: %w", idx, err)
		}
		d.Slots[idx] = dv
	}
	return nil
}

func decodeDiffValue(raw json.RawMessage) (DiffValue, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return DiffDelete{}, nil
	}
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty diff value", ErrDecode)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return DiffString(s), nil
	case '[':
		return nil, fmt.Errorf("%w: bare array in diff slot", ErrDecode)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		if _, isLoop := obj[entriesKey]; isLoop {
			return decodeLoopDiff(obj)
		}
		var td TemplateDiff
		if err := td.decodeRaw(obj); err != nil {
			return nil, err
		}
		return &td, nil
	default:
		return nil, fmt.Errorf("%w: diff slot is neither null, string, object nor loop", ErrDecode)
	}
}

func decodeLoopDiff(obj map[string]json.RawMessage) (*LoopDiff, error) {
	ld := &LoopDiff{Entries: make(map[string]*LoopEntryDiff)}
	if rawFixed, ok := obj[fixedKey]; ok {
		if err := json.Unmarshal(rawFixed, &ld.Fixed); err != nil {
			return nil, fmt.Errorf("%w: loop diff fixed fragments: %v", ErrDecode, err)
		}
	}
	var rawEntries map[string]json.RawMessage
	if err := json.Unmarshal(obj[entriesKey], &rawEntries); err != nil {
		return nil, fmt.Errorf("%w: loop diff entries: %v", ErrDecode, err)
	}
	for key, rawEntry := range rawEntries {
		if strings.TrimSpace(string(rawEntry)) == "null" {
			ld.Entries[key] = nil
			continue
		}
		var rawSlots map[string]json.RawMessage
		if err := json.Unmarshal(rawEntry, &rawSlots); err != nil {
			return nil, fmt.Errorf("%w: loop diff entry %q: %v", ErrDecode, key, err)
		}
		entry := &LoopEntryDiff{Slots: make(map[int]DiffValue, len(rawSlots))}
		for k, v := range rawSlots {
			idx, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("%w: unexpected entry key %q", ErrDecode, k)
			}
			dv, err := decodeDiffValue(v)
			if err != nil {
				return nil, fmt.Errorf("loop entry %q slot %d: %w", key, idx, err)
			}
			entry.Slots[idx] = dv
		}
		ld.Entries[key] = entry
	}
	if rawOrder, ok := obj[keyOrder]; ok {
		if err := json.Unmarshal(rawOrder, &ld.NewKeys); err != nil {
			return nil, fmt.Errorf("%w: loop diff key order: %v", ErrDecode, err)
		}
	}
	return ld, nil
}
