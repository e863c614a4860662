package resource

import (
	"bytes"
	"encoding/json"
	"slices"
	"sort"
)

// Entity is one JSON object of an API response. Keys keep the order in
// which they appeared in the payload; nested objects and arrays are wrapped
// eagerly when the entity is built.
type Entity struct {
	keys  []string
	props map[string]Value
}

// NewEntity wraps plain Go data into an Entity. Keys are sorted since
// map iteration order is undefined.
func NewEntity(props map[string]any) *Entity {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := newEntity(len(keys))
	for _, k := range keys {
		e.Set(k, ValueOf(props[k]))
	}

	return e
}

func newEntity(size int) *Entity {
	return &Entity{
		keys:  make([]string, 0, size),
		props: make(map[string]Value, size),
	}
}

// Get returns the value stored under key, or null if the key is absent.
func (e *Entity) Get(key string) Value {
	if e == nil {
		return Null()
	}
	return e.props[key]
}

// Set stores v under key. New keys are appended after existing ones.
func (e *Entity) Set(key string, v Value) {
	if _, ok := e.props[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.props[key] = v
}

// Has reports whether key is present, including keys holding null.
func (e *Entity) Has(key string) bool {
	if e == nil {
		return false
	}
	_, ok := e.props[key]
	return ok
}

// Delete removes key from the entity.
func (e *Entity) Delete(key string) {
	if _, ok := e.props[key]; !ok {
		return
	}
	delete(e.props, key)
	e.keys = slices.DeleteFunc(e.keys, func(k string) bool { return k == key })
}

// Keys returns the entity's keys in payload order.
func (e *Entity) Keys() []string {
	if e == nil {
		return nil
	}
	return slices.Clone(e.keys)
}

// Len returns the number of keys.
func (e *Entity) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// ToMap materializes the entity back into plain nested data.
func (e *Entity) ToMap() map[string]any {
	if e == nil {
		return nil
	}

	m := make(map[string]any, len(e.keys))
	for _, k := range e.keys {
		m[k] = e.props[k].Interface()
	}

	return m
}

// Equal reports whether e and o hold the same keys with equal values.
// Key order is ignored.
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	if len(e.keys) != len(o.keys) {
		return false
	}
	for k, v := range e.props {
		ov, ok := o.props[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler, writing keys in payload order.
func (e *Entity) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := e.props[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}
