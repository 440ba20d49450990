package heap

import "sort"

// ID identifies a heap record. IDs are strictly increasing and never reused
// within one Heap; zero is never a valid ID.
type ID uint64

// Record is one allocated object: a type tag plus a field map. Array
// records additionally carry their elements.
type Record[V any] struct {
	ID      ID
	Type    string
	Fields  map[string]V
	Elems   []V
	IsArray bool
	// Host holds native state for objects backed by a host implementation
	// (string builders, boxed strings).
	Host any
}

// Heap stores every object allocated during one execution session.
// There is no collection; the heap lives as long as the session.
type Heap[V any] struct {
	next ID
	recs map[ID]*Record[V]
}

// New returns an empty heap.
func New[V any]() *Heap[V] {
	return &Heap[V]{next: 1, recs: make(map[ID]*Record[V], 64)}
}

func (h *Heap[V]) initIfNeeded() {
	if h.recs == nil {
		h.recs = make(map[ID]*Record[V], 64)
	}
	if h.next == 0 {
		h.next = 1
	}
}

func (h *Heap[V]) alloc(typeName string) *Record[V] {
	h.initIfNeeded()
	rec := &Record[V]{ID: h.next, Type: typeName}
	h.next++
	h.recs[rec.ID] = rec
	return rec
}

// Allocate creates an empty record tagged with typeName.
func (h *Heap[V]) Allocate(typeName string) ID {
	rec := h.alloc(typeName)
	rec.Fields = make(map[string]V)
	return rec.ID
}

// AllocateWith creates a record whose field map starts as a copy of defaults.
func (h *Heap[V]) AllocateWith(typeName string, defaults map[string]V) ID {
	rec := h.alloc(typeName)
	rec.Fields = make(map[string]V, len(defaults))
	for k, v := range defaults {
		rec.Fields[k] = v
	}
	return rec.ID
}

// AllocateArray creates an array record of n elements, each set to zero.
func (h *Heap[V]) AllocateArray(typeName string, n int, zero V) ID {
	rec := h.alloc(typeName)
	rec.IsArray = true
	if n < 0 {
		n = 0
	}
	rec.Elems = make([]V, n)
	for i := range rec.Elems {
		rec.Elems[i] = zero
	}
	return rec.ID
}

// AllocateHost creates a record carrying host-side state.
func (h *Heap[V]) AllocateHost(typeName string, host any) ID {
	rec := h.alloc(typeName)
	rec.Fields = make(map[string]V)
	rec.Host = host
	return rec.ID
}

// Get returns the record for id.
func (h *Heap[V]) Get(id ID) (*Record[V], bool) {
	if h.recs == nil {
		return nil, false
	}
	rec, ok := h.recs[id]
	return rec, ok
}

// TypeOf returns the type tag of id, or "" for an unknown id.
func (h *Heap[V]) TypeOf(id ID) string {
	if rec, ok := h.Get(id); ok {
		return rec.Type
	}
	return ""
}

// GetField reads a field. Unknown records and unset fields yield the zero
// value of V and false.
func (h *Heap[V]) GetField(id ID, name string) (V, bool) {
	var zero V
	rec, ok := h.Get(id)
	if !ok || rec.Fields == nil {
		return zero, false
	}
	v, ok := rec.Fields[name]
	return v, ok
}

// SetField writes a field and reports whether the record exists.
func (h *Heap[V]) SetField(id ID, name string, v V) bool {
	rec, ok := h.Get(id)
	if !ok {
		return false
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]V)
	}
	rec.Fields[name] = v
	return true
}

// DeleteField removes a field and reports whether it was present.
func (h *Heap[V]) DeleteField(id ID, name string) bool {
	rec, ok := h.Get(id)
	if !ok || rec.Fields == nil {
		return false
	}
	if _, present := rec.Fields[name]; !present {
		return false
	}
	delete(rec.Fields, name)
	return true
}

// FieldNames returns the field names of id in sorted order.
func (h *Heap[V]) FieldNames(id ID) []string {
	rec, ok := h.Get(id)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of live records.
func (h *Heap[V]) Len() int { return len(h.recs) }

// Each visits records in allocation order.
func (h *Heap[V]) Each(fn func(*Record[V]) bool) {
	ids := make([]ID, 0, len(h.recs))
	for id := range h.recs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !fn(h.recs[id]) {
			return
		}
	}
}
