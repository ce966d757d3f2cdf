package serde

import (
	"encoding/json"
	"reflect"
)

// elementState tracks the memoization protocol shared by the lazy wrappers.
// Every key starts pending; a read moves it to done or omitted exactly once.
type elementState uint8

const (
	statePending elementState = iota
	stateDone
	stateOmitted
)

// SerList is the lazy sequence wrapper. Construction does no serialization
// work; element access serializes that single element and memoizes it.
// Elements whose raw value is in the omit set are excluded from iteration
// and materialization.
type SerList struct {
	name string
	lazy bool
	ser  Routine
	omit []any

	src   reflect.Value
	memo  []any
	state []elementState
}

func newSerList(src reflect.Value, ser Routine, omit []any, lazy bool, name string) *SerList {
	n := src.Len()
	return &SerList{
		name:  name,
		lazy:  lazy,
		ser:   ser,
		omit:  omit,
		src:   src,
		memo:  make([]any, n),
		state: make([]elementState, n),
	}
}

// Len returns the number of backing elements, including omitted ones.
func (l *SerList) Len() int {
	return len(l.memo)
}

// Get serializes and memoizes element i. ok is false when the element's raw
// value is omitted.
func (l *SerList) Get(i int) (v any, ok bool, err error) {
	switch l.state[i] {
	case stateDone:
		return l.memo[i], true, nil
	case stateOmitted:
		return nil, false, nil
	}
	raw := l.src.Index(i).Interface()
	if valueOmitted(raw, l.omit) {
		l.state[i] = stateOmitted
		return nil, false, nil
	}
	out, err := l.ser(raw, l.lazy, indexName(l.name, i))
	if err != nil {
		return nil, false, err
	}
	l.memo[i] = out
	l.state[i] = stateDone
	return out, true, nil
}

// Range calls fn for each non-omitted element in backing order. Elements
// are serialized on demand; returning false stops iteration.
func (l *SerList) Range(fn func(i int, v any) bool) error {
	for i := range l.memo {
		v, ok, err := l.Get(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(i, v) {
			return nil
		}
	}
	return nil
}

// Materialize forces every element and returns the plain slice, minus
// omitted entries.
func (l *SerList) Materialize() ([]any, error) {
	out := make([]any, 0, len(l.memo))
	err := l.Range(func(_ int, v any) bool {
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *SerList) materialize() (any, error) {
	out, err := l.Materialize()
	if err != nil {
		return nil, err
	}
	return deepMaterializeSlice(out)
}

// MarshalJSON materializes the wrapper, so lazy output encodes
// transparently.
func (l *SerList) MarshalJSON() ([]byte, error) {
	out, err := l.materialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// boundField binds one struct field to its serialized name, access path,
// serializer, and omit set. The table is fixed at routine-compilation time.
type boundField struct {
	key   string
	index []int
	ser   Routine
	omit  []any
}

// ClassFieldMap is the lazy wrapper for structured records. Each key has
// its own getter and its own serializer. A key whose raw value is in its
// omit set is excluded from iteration and physically dropped from the
// backing order on the next iteration pass.
type ClassFieldMap struct {
	name string
	lazy bool

	instance reflect.Value
	fields   map[string]boundField
	order    []string
	memo     map[string]any
	state    map[string]elementState
}

func newClassFieldMap(instance reflect.Value, fields []boundField, lazy bool, name string) *ClassFieldMap {
	m := &ClassFieldMap{
		name:     name,
		lazy:     lazy,
		instance: instance,
		fields:   make(map[string]boundField, len(fields)),
		order:    make([]string, 0, len(fields)),
		memo:     make(map[string]any, len(fields)),
		state:    make(map[string]elementState, len(fields)),
	}
	for _, f := range fields {
		m.fields[f.key] = f
		m.order = append(m.order, f.key)
	}
	return m
}

// Get serializes and memoizes the field stored under key. ok is false for
// unknown keys and for fields whose raw value is omitted.
func (m *ClassFieldMap) Get(key string) (v any, ok bool, err error) {
	f, exists := m.fields[key]
	if !exists {
		return nil, false, nil
	}
	switch m.state[key] {
	case stateDone:
		return m.memo[key], true, nil
	case stateOmitted:
		return nil, false, nil
	}
	raw := m.instance.FieldByIndex(f.index).Interface()
	if valueOmitted(raw, f.omit) {
		m.state[key] = stateOmitted
		return nil, false, nil
	}
	out, err := f.ser(raw, m.lazy, joinedName(m.name, key))
	if err != nil {
		return nil, false, err
	}
	m.memo[key] = out
	m.state[key] = stateDone
	return out, true, nil
}

// Keys returns the iteration order: backing order minus keys already known
// to be omitted. Omitted keys are deleted from the backing order on this
// pass.
func (m *ClassFieldMap) Keys() []string {
	kept := m.order[:0]
	out := make([]string, 0, len(m.order))
	for _, k := range m.order {
		if m.state[k] == stateOmitted {
			delete(m.fields, k)
			continue
		}
		kept = append(kept, k)
		out = append(out, k)
	}
	m.order = kept
	return out
}

// Range calls fn for each non-omitted field in declaration order,
// serializing on demand.
func (m *ClassFieldMap) Range(fn func(key string, v any) bool) error {
	for _, k := range m.Keys() {
		v, ok, err := m.Get(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Materialize forces every field and returns the plain mapping, minus
// omitted entries.
func (m *ClassFieldMap) Materialize() (map[string]any, error) {
	out := make(map[string]any, len(m.order))
	err := m.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ClassFieldMap) materialize() (any, error) {
	out, err := m.Materialize()
	if err != nil {
		return nil, err
	}
	return deepMaterializeMap(out)
}

// MarshalJSON materializes the wrapper, so lazy output encodes
// transparently.
func (m *ClassFieldMap) MarshalJSON() ([]byte, error) {
	out, err := m.materialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// KVMap is the lazy wrapper for homogeneous mappings. A single key
// serializer and a single value serializer apply uniformly; keys are
// serialized eagerly at construction, values lazily on first read.
type KVMap struct {
	name string
	lazy bool
	vser Routine
	omit []any

	raw   map[string]any
	order []string
	memo  map[string]any
	state map[string]elementState
}

func newKVMap(src reflect.Value, kser func(any) (string, error), vser Routine, omit []any, lazy bool, name string) (*KVMap, error) {
	n := src.Len()
	m := &KVMap{
		name:  name,
		lazy:  lazy,
		vser:  vser,
		omit:  omit,
		raw:   make(map[string]any, n),
		order: make([]string, 0, n),
		memo:  make(map[string]any, n),
		state: make(map[string]elementState, n),
	}
	iter := src.MapRange()
	for iter.Next() {
		key, err := kser(iter.Key().Interface())
		if err != nil {
			return nil, err
		}
		// Distinct raw keys may collapse to one serialized key; the
		// order list holds each key once, last write wins for the value.
		if _, seen := m.raw[key]; !seen {
			m.order = append(m.order, key)
		}
		m.raw[key] = iter.Value().Interface()
	}
	return m, nil
}

// Get serializes and memoizes the value stored under key. ok is false for
// unknown keys and for entries whose raw value is omitted.
func (m *KVMap) Get(key string) (v any, ok bool, err error) {
	raw, exists := m.raw[key]
	if !exists {
		return nil, false, nil
	}
	switch m.state[key] {
	case stateDone:
		return m.memo[key], true, nil
	case stateOmitted:
		return nil, false, nil
	}
	if valueOmitted(raw, m.omit) {
		m.state[key] = stateOmitted
		return nil, false, nil
	}
	out, err := m.vser(raw, m.lazy, collectionName(m.name, key))
	if err != nil {
		return nil, false, err
	}
	m.memo[key] = out
	m.state[key] = stateDone
	return out, true, nil
}

// Keys returns the iteration order minus keys already known to be omitted,
// deleting omitted entries from the backing store on this pass.
func (m *KVMap) Keys() []string {
	kept := m.order[:0]
	out := make([]string, 0, len(m.order))
	for _, k := range m.order {
		if m.state[k] == stateOmitted {
			delete(m.raw, k)
			continue
		}
		kept = append(kept, k)
		out = append(out, k)
	}
	m.order = kept
	return out
}

// Range calls fn for each non-omitted entry in backing insertion order,
// serializing values on demand.
func (m *KVMap) Range(fn func(key string, v any) bool) error {
	for _, k := range m.Keys() {
		v, ok, err := m.Get(k)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// Materialize forces every entry and returns the plain mapping, minus
// omitted entries.
func (m *KVMap) Materialize() (map[string]any, error) {
	out := make(map[string]any, len(m.order))
	err := m.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *KVMap) materialize() (any, error) {
	out, err := m.Materialize()
	if err != nil {
		return nil, err
	}
	return deepMaterializeMap(out)
}

// MarshalJSON materializes the wrapper, so lazy output encodes
// transparently.
func (m *KVMap) MarshalJSON() ([]byte, error) {
	out, err := m.materialize()
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// deepMaterializeSlice forces nested lazy wrappers inside a materialized
// slice.
func deepMaterializeSlice(in []any) ([]any, error) {
	for i, v := range in {
		if lc, ok := v.(lazyContainer); ok {
			mv, err := lc.materialize()
			if err != nil {
				return nil, err
			}
			in[i] = mv
		}
	}
	return in, nil
}

// deepMaterializeMap forces nested lazy wrappers inside a materialized map.
func deepMaterializeMap(in map[string]any) (map[string]any, error) {
	for k, v := range in {
		if lc, ok := v.(lazyContainer); ok {
			mv, err := lc.materialize()
			if err != nil {
				return nil, err
			}
			in[k] = mv
		}
	}
	return in, nil
}
