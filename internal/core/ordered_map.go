package core

// OrderedMap is an insertion-ordered string->string map, used for the
// node/edge metadata attribute bag (§3, §9). A plain map loses the
// insertion order that makes debug output and docs-linker evidence
// reproducible, so we keep a parallel key slice.
type OrderedMap struct {
	keys   []string
	values map[string]string
}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]string)}
}

// Set inserts or updates key. Existing keys keep their original position.
func (m *OrderedMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key, preserving the order of the remaining keys.
func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int { return len(m.keys) }

// Merge overlays other onto m, last-write-wins per key, used when two
// upserts of the same node's metadata are combined (§4.9 upsert_nodes).
func (m *OrderedMap) Merge(other *OrderedMap) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		v, _ := other.values[k]
		m.Set(k, v)
	}
}

// Clone returns a deep copy.
func (m *OrderedMap) Clone() *OrderedMap {
	out := NewOrderedMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}
