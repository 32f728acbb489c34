package liveclient

import (
	"fmt"
	"sort"
)

// Merge applies a diff to the template in place. Slot rules, in order:
// delete removes the slot; a string replaces it unconditionally; a
// structured diff patches a matching-shape structure recursively, and
// against anything else (absent, string, or mismatched shape) it is
// materialized as a fresh full value. A present Fixed replaces the
// fixed fragments wholesale.
//
// The caller must have an initialized template; merging into nil is a
// state-consistency error, not a way to bootstrap.
func (t *Template) Merge(d *TemplateDiff) error {
	if t == nil {
		return fmt.Errorf("%w: merge into uninitialized template", ErrState)
	}
	if d == nil {
		return nil
	}
	if d.Fixed != nil {
		t.Fixed = d.Fixed
	}
	if t.Slots == nil && len(d.Slots) > 0 {
		t.Slots = make(map[int]Dynamic, len(d.Slots))
	}
	for _, idx := range sortedDiffIndexes(d.Slots) {
		if err := mergeSlot(t.Slots, idx, d.Slots[idx]); err != nil {
			return fmt.Errorf("slot %d: %w", idx, err)
		}
	}
	return nil
}

// mergeSlot applies one DiffValue to one slot of a dynamic mapping.
// Shared between template slots and loop entry slots, which follow the
// same rules.
func mergeSlot(slots map[int]Dynamic, idx int, dv DiffValue) error {
	switch dv := dv.(type) {
	case DiffDelete:
		delete(slots, idx)
	case DiffString:
		slots[idx] = DynString(dv)
	case *TemplateDiff:
		if cur, ok := slots[idx].(*Template); ok {
			return cur.Merge(dv)
		}
		slots[idx] = materializeTemplate(dv)
	case *LoopDiff:
		if cur, ok := slots[idx].(*Loop); ok {
			return cur.merge(dv)
		}
		slots[idx] = materializeLoop(dv)
	default:
		return fmt.Errorf("%w: unknown diff value %T", ErrDecode, dv)
	}
	return nil
}

// merge applies a loop diff by entry key: nil removes the key, an
// existing entry is patched slot by slot, an unknown key creates a new
// entry. A key order on the diff then re-declares the relative order of
// every key it names, so insertions can land anywhere; keys the order
// does not name keep their places ahead of the named block.
func (l *Loop) merge(d *LoopDiff) error {
	if d.Fixed != nil {
		l.Fixed = d.Fixed
	}
	if l.Entries == nil && len(d.Entries) > 0 {
		l.Entries = make(map[string]map[int]Dynamic, len(d.Entries))
	}
	for _, key := range d.entryKeys() {
		entry := d.Entries[key]
		if entry == nil {
			delete(l.Entries, key)
			l.removeKey(key)
			continue
		}
		cur, exists := l.Entries[key]
		if !exists {
			cur = make(map[int]Dynamic, len(entry.Slots))
			l.Entries[key] = cur
			l.Keys = append(l.Keys, key)
		}
		for _, idx := range sortedDiffIndexes(entry.Slots) {
			if err := mergeSlot(cur, idx, entry.Slots[idx]); err != nil {
				return fmt.Errorf("entry %q slot %d: %w", key, idx, err)
			}
		}
	}
	if len(d.NewKeys) > 0 {
		l.Keys = spliceKeyOrder(l.Keys, d.NewKeys, l.Entries)
	}
	return nil
}

// spliceKeyOrder rebuilds the key list after a merge: keys the diff's
// order names follow it exactly, the rest keep their current relative
// order in front. Names without a live entry are ignored.
func spliceKeyOrder(current, declared []string, entries map[string]map[int]Dynamic) []string {
	named := make(map[string]bool, len(declared))
	for _, k := range declared {
		if _, ok := entries[k]; ok {
			named[k] = true
		}
	}
	out := make([]string, 0, len(current))
	for _, k := range current {
		if !named[k] {
			out = append(out, k)
		}
	}
	seen := make(map[string]bool, len(declared))
	for _, k := range declared {
		if named[k] && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// entryKeys yields the diff's entries with new keys in their declared
// delivery order, falling back to a numeric-aware sort for servers that
// omit it.
func (d *LoopDiff) entryKeys() []string {
	if len(d.NewKeys) == 0 {
		return sortedEntryKeys(d.Entries)
	}
	seen := make(map[string]bool, len(d.NewKeys))
	keys := make([]string, 0, len(d.Entries))
	for _, k := range d.NewKeys {
		if _, ok := d.Entries[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for _, k := range sortedEntryKeys(d.Entries) {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func (l *Loop) removeKey(key string) {
	for i, k := range l.Keys {
		if k == key {
			l.Keys = append(l.Keys[:i], l.Keys[i+1:]...)
			return
		}
	}
}

// materializeTemplate builds a full template from a diff, used when a
// structured diff arrives for a slot that held nothing, a string, or a
// mismatched shape. The diff content acts as the initial full value.
func materializeTemplate(d *TemplateDiff) *Template {
	t := &Template{Fixed: d.Fixed, Slots: make(map[int]Dynamic, len(d.Slots))}
	for idx, dv := range d.Slots {
		if dyn := materializeValue(dv); dyn != nil {
			t.Slots[idx] = dyn
		}
	}
	return t
}

func materializeLoop(d *LoopDiff) *Loop {
	l := &Loop{Fixed: d.Fixed, Entries: make(map[string]map[int]Dynamic, len(d.Entries))}
	for _, key := range d.entryKeys() {
		entry := d.Entries[key]
		if entry == nil {
			continue
		}
		slots := make(map[int]Dynamic, len(entry.Slots))
		for idx, dv := range entry.Slots {
			if dyn := materializeValue(dv); dyn != nil {
				slots[idx] = dyn
			}
		}
		l.Entries[key] = slots
		l.Keys = append(l.Keys, key)
	}
	return l
}

// materializeValue turns a diff value into a full dynamic value.
// Deletes materialize as nothing.
func materializeValue(dv DiffValue) Dynamic {
	switch dv := dv.(type) {
	case DiffString:
		return DynString(dv)
	case *TemplateDiff:
		return materializeTemplate(dv)
	case *LoopDiff:
		return materializeLoop(dv)
	default:
		return nil
	}
}

func sortedDiffIndexes(slots map[int]DiffValue) []int {
	idxs := make([]int, 0, len(slots))
	for i := range slots {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}
