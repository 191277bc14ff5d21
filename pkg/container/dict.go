package container

// Dict is a generic string-keyed map backing both the Redis HASH kind
// (field -> value) and the SET kind (member -> presence, using an empty placeholder V).
type Dict[V any] struct {
	fields map[string]V
}

// NewDict constructs an empty Dict.
func NewDict[V any]() *Dict[V] {
	return &Dict[V]{fields: make(map[string]V)}
}

// Len returns the number of fields/members stored.
func (d *Dict[V]) Len() int { return len(d.fields) }

// Get returns the value for field and whether it was present.
func (d *Dict[V]) Get(field string) (V, bool) {
	v, ok := d.fields[field]
	return v, ok
}

// Set stores value under field, returning true if field is newly created.
func (d *Dict[V]) Set(field string, value V) (isNew bool) {
	_, existed := d.fields[field]
	d.fields[field] = value
	return !existed
}

// Delete removes field, returning whether it was present.
func (d *Dict[V]) Delete(field string) bool {
	if _, ok := d.fields[field]; !ok {
		return false
	}
	delete(d.fields, field)
	return true
}

// Has reports whether field is a member/key of the dict.
func (d *Dict[V]) Has(field string) bool {
	_, ok := d.fields[field]
	return ok
}

// Fields returns every field/member name currently stored. Order is
// unspecified, matching Redis' hash/set iteration contract.
func (d *Dict[V]) Fields() []string {
	out := make([]string, 0, len(d.fields))
	for f := range d.fields {
		out = append(out, f)
	}
	return out
}

// Each calls fn once per (field, value) pair. fn must not mutate the dict.
func (d *Dict[V]) Each(fn func(field string, value V)) {
	for f, v := range d.fields {
		fn(f, v)
	}
}
