// FILE: lixenwraith/layered/table.go
package layered

import (
	"slices"
	"sort"
)

// Table maps unique string keys to values.
// Insertion order is always recorded; whether Keys reports it is decided by the
// ordering mode chosen at construction (NewOrderedTable) and is otherwise sorted.
type Table struct {
	keys    []string
	entries map[string]Value
	ordered bool
}

// NewTable creates an empty table whose key iteration order is unspecified.
func NewTable() *Table {
	return &Table{entries: make(map[string]Value)}
}

// NewOrderedTable creates an empty table that iterates keys in insertion order.
func NewOrderedTable() *Table {
	return &Table{entries: make(map[string]Value), ordered: true}
}

func newTableMode(ordered bool) *Table {
	if ordered {
		return NewOrderedTable()
	}
	return NewTable()
}

// Ordered reports whether the table preserves insertion order.
func (t *Table) Ordered() bool {
	return t != nil && t.ordered
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Get returns the value stored under key.
func (t *Table) Get(key string) (Value, bool) {
	if t == nil {
		return Value{}, false
	}
	v, ok := t.entries[key]
	return v, ok
}

// Set inserts or replaces key. A replaced key keeps its original position.
// Tables reachable from a Config snapshot must not be mutated; use Value.Set,
// which copies along the written path.
func (t *Table) Set(key string, v Value) {
	if _, exists := t.entries[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.entries[key] = v
}

// Delete removes key if present.
func (t *Table) Delete(key string) {
	if _, exists := t.entries[key]; !exists {
		return
	}
	delete(t.entries, key)
	if i := slices.Index(t.keys, key); i >= 0 {
		t.keys = slices.Delete(t.keys, i, i+1)
	}
}

// Keys returns the keys in insertion order for ordered tables and in sorted
// order otherwise.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := slices.Clone(t.keys)
	if !t.ordered {
		sort.Strings(keys)
	}
	return keys
}

// Range calls fn for every entry in Keys order until fn returns false.
func (t *Table) Range(fn func(key string, v Value) bool) {
	for _, k := range t.Keys() {
		if !fn(k, t.entries[k]) {
			return
		}
	}
}

// clone returns a shallow copy; child values are shared.
func (t *Table) clone() *Table {
	if t == nil {
		return NewTable()
	}
	c := &Table{
		keys:    slices.Clone(t.keys),
		entries: make(map[string]Value, len(t.entries)),
		ordered: t.ordered,
	}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	return c
}

// TableOf builds an ordered table from alternating key/value arguments.
// It panics on an odd argument count or a non-string key, so it is meant for
// literals in tests and examples.
func TableOf(kv ...any) *Table {
	if len(kv)%2 != 0 {
		panic("layered: TableOf requires key/value pairs")
	}
	t := NewOrderedTable()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("layered: TableOf key must be a string")
		}
		v, err := FromNative(kv[i+1], "")
		if err != nil {
			panic("layered: TableOf: " + err.Error())
		}
		t.Set(key, v)
	}
	return t
}
