package serde

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"

	"github.com/serde-go/serde/constraints"
)

func init() {
	// Register the tags the field scanner consumes with sentinel.
	sentinel.Tag("json")
}

// Field describes one serializable struct field: the declared name, the
// serialized name, the reflect access path, and the field's resolved
// annotation. Per-field omit values come from `json:",omitempty"`.
type Field struct {
	Name       string
	OutName    string
	Index      []int
	Annotation Annotation
	Omit       []any
}

// Resolver resolves raw types into annotations, scans struct protocols, and
// owns the registries for enumerations, unions, and constraints. It also
// provides the dynamic passthrough serializer used where no static shape is
// known.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	mu          sync.RWMutex
	enums       map[reflect.Type][]any
	unions      map[reflect.Type][]reflect.Type
	constraints map[reflect.Type]constraints.Constraints
	protocols   map[reflect.Type][]Field

	factory *Factory
}

// NewResolver creates an empty resolver with its own serializer factory.
func NewResolver() *Resolver {
	r := &Resolver{
		enums:       make(map[reflect.Type][]any),
		unions:      make(map[reflect.Type][]reflect.Type),
		constraints: make(map[reflect.Type]constraints.Constraints),
		protocols:   make(map[reflect.Type][]Field),
	}
	r.factory = newFactory(r)
	return r
}

// Factory returns the serializer factory bound to this resolver.
func (r *Resolver) Factory() *Factory {
	return r.factory
}

// Annotate resolves t into an Annotation: pointers unwrap to the optional
// flag, generic arguments are captured in order, and interface types are
// marked non-static.
func (r *Resolver) Annotate(t reflect.Type, opts ...ResolveOption) Annotation {
	resolved, optional := Normalize(t)
	a := Annotation{
		Raw:      t,
		Type:     resolved,
		Optional: optional,
		Static:   resolved != nil && resolved.Kind() != reflect.Interface,
	}
	if resolved != nil {
		switch resolved.Kind() {
		case reflect.Map:
			a.Args = []reflect.Type{resolved.Key(), resolved.Elem()}
		case reflect.Slice, reflect.Array:
			a.Args = []reflect.Type{resolved.Elem()}
		}
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.Serde == nil {
		a.Serde = &SerdeConfig{}
	}
	return a
}

// RegisterEnum declares t as an enumeration whose members serialize to the
// given values. Member values of one shared concrete type allow the
// compiler to specialize; mixed value types fall back to dynamic dispatch.
func (r *Resolver) RegisterEnum(t reflect.Type, values ...any) {
	t, _ = Normalize(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[t] = values
}

// EnumMembers returns the registered member values for t.
func (r *Resolver) EnumMembers(t reflect.Type) ([]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values, ok := r.enums[t]
	return values, ok
}

// RegisterUnion declares iface as a union over the given member types. The
// schema builder emits an anyOf across the members, rendering a nil member
// as a null node to mark the union nullable; the serializer treats
// union-typed values as dynamic.
func (r *Resolver) RegisterUnion(iface reflect.Type, members ...reflect.Type) {
	iface, _ = Normalize(iface)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unions[iface] = members
}

// UnionMembers returns the registered member types for t.
func (r *Resolver) UnionMembers(t reflect.Type) ([]reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.unions[t]
	return members, ok
}

// SetConstraints attaches a constraints collaborator to t. The schema
// builder consumes it opaquely through ForSchema.
func (r *Resolver) SetConstraints(t reflect.Type, c constraints.Constraints) {
	t, _ = Normalize(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constraints[t] = c
}

// ConstraintsFor returns the constraints attached to t, or nil.
func (r *Resolver) ConstraintsFor(t reflect.Type) constraints.Constraints {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constraints[t]
}

// Protocols scans t's exported fields into an ordered field list. Names
// honor the json tag; `json:"-"` fields are skipped and `json:",omitempty"`
// adds the field's zero value to its omit set. Results are cached per type.
func (r *Resolver) Protocols(t reflect.Type) ([]Field, error) {
	t, _ = Normalize(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct type", ErrUnresolvable, qualname(t))
	}

	r.mu.RLock()
	if cached, ok := r.protocols[t]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	meta := scanMetadata(t)
	fields := make([]Field, 0, len(meta.Fields))
	for _, fm := range meta.Fields {
		outName, omitEmpty, skip := parseJSONTag(fm.Tags["json"], fm.Name)
		if skip {
			continue
		}
		f := Field{
			Name:       fm.Name,
			OutName:    outName,
			Index:      fm.Index,
			Annotation: r.Annotate(fm.ReflectType),
		}
		if omitEmpty {
			f.Omit = []any{reflect.Zero(fm.ReflectType).Interface()}
		}
		fields = append(fields, f)
	}

	r.mu.Lock()
	r.protocols[t] = fields
	r.mu.Unlock()
	return fields, nil
}

// scanMetadata returns sentinel metadata for rt, preferring a prior
// sentinel scan and falling back to direct construction for types only
// known through reflection.
func scanMetadata(rt reflect.Type) sentinel.Metadata {
	if spec, ok := sentinel.Lookup(rt.String()); ok {
		return spec
	}

	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        map[string]string{},
		}
		if val, ok := sf.Tag.Lookup("json"); ok {
			fm.Tags["json"] = val
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Pointer:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return spec
}

// parseJSONTag splits a json struct tag into the serialized name, the
// omitempty flag, and whether the field is skipped entirely.
func parseJSONTag(tag, fallback string) (name string, omitEmpty, skip bool) {
	name = fallback
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" && len(parts) == 1 {
		return "", false, true
	}
	if parts[0] != "" {
		name = parts[0]
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// Primitive is the generic passthrough serializer: it defers all
// type-specific logic to the runtime type of each value. It is the fallback
// for dynamic annotations, union-typed values, and heterogeneous enums.
// The lazy flag is accepted for signature compatibility; dynamic dispatch
// always materializes.
func (r *Resolver) Primitive(v any, lazy bool, name string) (any, error) {
	_ = lazy
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	t := rv.Type()

	if conv, ok := definedFor(t); ok {
		return conv(rv.Interface())
	}

	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if t.PkgPath() == "" {
			return rv.Interface(), nil
		}
		return rv.Convert(kindBase(t.Kind())).Interface(), nil

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := r.primitiveKey(iter.Key(), name)
			if err != nil {
				return nil, err
			}
			val, err := r.Primitive(iter.Value().Interface(), false, collectionName(name, key))
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil

	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			val, err := r.Primitive(rv.Index(i).Interface(), false, indexName(name, i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case reflect.Struct:
		fields, err := r.Protocols(t)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			raw := rv.FieldByIndex(f.Index).Interface()
			if valueOmitted(raw, f.Omit) {
				continue
			}
			val, err := r.Primitive(raw, false, joinedName(name, f.OutName))
			if err != nil {
				return nil, err
			}
			out[f.OutName] = val
		}
		return out, nil
	}

	return nil, &UnsupportedError{Type: qualname(t), Path: name}
}

// primitiveKey serializes a map key through the dynamic path and renders it
// as a string.
func (r *Resolver) primitiveKey(k reflect.Value, name string) (string, error) {
	p, err := r.Primitive(k.Interface(), false, name)
	if err != nil {
		return "", err
	}
	return stringifyKey(p), nil
}

// stringifyKey renders a serialized key for use in a string-keyed mapping.
func stringifyKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

var kindBases = map[reflect.Kind]reflect.Type{
	reflect.String:  reflect.TypeFor[string](),
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
}

// kindBase returns the unnamed builtin type for a primitive kind.
func kindBase(k reflect.Kind) reflect.Type {
	return kindBases[k]
}

// isPrimitiveKind reports whether k is one of the fixed primitive kinds.
func isPrimitiveKind(k reflect.Kind) bool {
	_, ok := kindBases[k]
	return ok
}

// joinedName builds a dotted field path for error messages.
func joinedName(name, field string) string {
	if name == "" {
		return field
	}
	return name + "." + field
}

// collectionName builds a keyed path segment for error messages.
func collectionName(name, key string) string {
	return name + "[" + key + "]"
}

// indexName builds an indexed path segment for error messages.
func indexName(name string, i int) string {
	return fmt.Sprintf("%s[%d]", name, i)
}
