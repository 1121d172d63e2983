// Package ordered provides a string-keyed map that remembers insertion order.
// Several pipeline guarantees (first-seen-wins dedup, missing-list ordering)
// depend on iteration order, so the order is a stated contract here rather
// than an incidental property of Go's map type.
package ordered

type entry[V any] struct {
	key string
	val V
}

// Map is an insertion-ordered map with string keys. The zero value is not
// usable; call New.
type Map[V any] struct {
	entries []entry[V]
	index   map[string]int
}

func New[V any]() *Map[V] {
	return &Map[V]{index: make(map[string]int)}
}

// Set stores val under key. A key keeps its original position when set
// again; only the value is replaced.
func (m *Map[V]) Set(key string, val V) {
	if i, ok := m.index[key]; ok {
		m.entries[i].val = val
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry[V]{key: key, val: val})
}

// SetIfAbsent stores val only when key is not already present.
// Reports whether the value was stored.
func (m *Map[V]) SetIfAbsent(key string, val V) bool {
	if _, ok := m.index[key]; ok {
		return false
	}
	m.Set(key, val)
	return true
}

func (m *Map[V]) Get(key string) (V, bool) {
	if i, ok := m.index[key]; ok {
		return m.entries[i].val, true
	}
	var zero V
	return zero, false
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in insertion order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Values returns the values in insertion order.
func (m *Map[V]) Values() []V {
	vals := make([]V, len(m.entries))
	for i, e := range m.entries {
		vals[i] = e.val
	}
	return vals
}
