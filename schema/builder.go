package schema

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/shopspring/decimal"

	"github.com/serde-go/serde"
)

// Builder walks compiled type metadata to emit structural schema documents.
// Built object schemas are cached per type; recursive types are detected
// with a per-root-call guard and short-circuited into $ref pointers.
//
// A Builder is safe for concurrent use.
type Builder struct {
	resolver *serde.Resolver

	mu       sync.RWMutex
	fields   map[fieldKey]Field
	objects  map[reflect.Type]*ObjectField
	order    []reflect.Type
	attached map[reflect.Type]struct{}
}

// fieldKey caches field schemas per normalized signature, access
// qualifiers, and default value. Defaults are part of the key because
// decoration bakes them into the cached node.
type fieldKey struct {
	sig string
	ro  bool
	wo  bool
	def string
}

// NewBuilder creates a schema builder over the resolver's annotations and
// registries.
func NewBuilder(r *serde.Resolver) *Builder {
	return &Builder{
		resolver: r,
		fields:   make(map[fieldKey]Field),
		objects:  make(map[reflect.Type]*ObjectField),
		attached: make(map[reflect.Type]struct{}),
	}
}

// FieldOpts carries the per-use qualifiers for a field schema request.
type FieldOpts struct {
	RO     bool
	WO     bool
	Name   string
	Parent reflect.Type
}

// buildState is the cycle guard for one root build call. Threading it
// through recursion scopes cycle detection to exactly one root, so sibling
// fields of the same parent cannot clobber each other's state.
type buildState struct {
	stack map[reflect.Type]bool
}

func newBuildState() *buildState {
	return &buildState{stack: make(map[reflect.Type]bool)}
}

// Attach registers t for deferred building; All drains the attached set.
func (b *Builder) Attach(t reflect.Type) {
	t, _ = serde.Normalize(t)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached[t] = struct{}{}
}

// Field returns the schema node for an annotation.
func (b *Builder) Field(anno serde.Annotation, opts FieldOpts) (Field, error) {
	return b.field(anno, opts, newBuildState())
}

// Build returns the object schema for a struct type, building and caching
// it on first use.
func (b *Builder) Build(t reflect.Type, name string) (*ObjectField, error) {
	t, _ = serde.Normalize(t)
	return b.buildObject(t, name, newBuildState())
}

// field resolves one schema node, consulting the cycle guard, the field
// cache, and then the strategy dispatch.
func (b *Builder) field(anno serde.Annotation, opts FieldOpts, st *buildState) (Field, error) {
	t := anno.Type
	if t == nil {
		return &UndeclaredField{}, nil
	}

	if members, ok := b.resolver.UnionMembers(t); ok {
		return b.unionField(t, members, opts, st)
	}
	if t.Kind() == reflect.Interface {
		f := &UndeclaredField{}
		f.setAccess(opts.RO, opts.WO)
		return f, nil
	}

	// A type already being resolved on this root call is a cycle; break
	// it with a reference instead of recursing.
	if st.stack[t] {
		return &Ref{Path: refPath(defname(t, opts.Name))}, nil
	}

	key := fieldKey{sig: serde.Signature(t, anno.Optional), ro: opts.RO, wo: opts.WO}
	if anno.HasDefault {
		key.def = fmt.Sprint(anno.Default)
	}
	b.mu.RLock()
	if cached, ok := b.fields[key]; ok {
		b.mu.RUnlock()
		return cached, nil
	}
	b.mu.RUnlock()

	st.stack[t] = true
	defer delete(st.stack, t)

	f := b.dispatch(t, anno, opts, st)
	b.decorate(f, t, anno, opts)

	b.mu.Lock()
	b.fields[key] = f
	b.mu.Unlock()
	return f, nil
}

// dispatch selects the schema strategy for t.
func (b *Builder) dispatch(t reflect.Type, anno serde.Annotation, opts FieldOpts, st *buildState) Field {
	if members, ok := b.resolver.EnumMembers(t); ok {
		return enumField(t, members)
	}
	if f, ok := definedField(t); ok {
		return f
	}

	switch t.Kind() {
	case reflect.String:
		return &StrField{}
	case reflect.Bool:
		return &BooleanField{}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &IntField{}
	case reflect.Float32, reflect.Float64:
		return &NumberField{}

	case reflect.Map:
		return b.mappingField(t, opts, st)

	case reflect.Slice, reflect.Array:
		return b.arrayField(t, opts, st)

	case reflect.Struct:
		obj, err := b.buildObject(t, defname(t, opts.Name), st)
		if err != nil {
			emitSchemaFallback(t.String(), err)
			return &UndeclaredField{Base: Base{Title: defname(t, opts.Name)}}
		}
		// Shallow clone so decoration never mutates the cached object.
		clone := *obj
		return &clone
	}

	emitSchemaFallback(t.String(), &BuildError{Type: t.String()})
	return &UndeclaredField{Base: Base{Title: defname(t, opts.Name)}}
}

// decorate applies access qualifiers, defaults, constraints, and the
// read-only-const rule to a resolved node.
func (b *Builder) decorate(f Field, t reflect.Type, anno serde.Annotation, opts FieldOpts) {
	ro := opts.RO || anno.ReadOnly
	wo := opts.WO || anno.WriteOnly
	if as, ok := f.(accessSetter); ok {
		as.setAccess(ro, wo)
	}
	base := baseOf(f)
	if base == nil {
		return
	}
	if anno.HasDefault {
		base.Default = anno.Default
		// A read-only field with a default is a constant: an enum of
		// exactly one value.
		if ro && anno.Default != nil {
			base.Enum = []any{anno.Default}
		}
	}
	if c := b.resolver.ConstraintsFor(t); c != nil {
		kv := c.ForSchema()
		if len(kv) > 0 {
			if base.Extra == nil {
				base.Extra = make(map[string]any, len(kv))
			}
			for k, v := range kv {
				base.Extra[k] = v
			}
		}
	}
}

// baseOf exposes the embedded Base of a node, or nil for reference nodes.
func baseOf(f Field) *Base {
	switch f := f.(type) {
	case *StrField:
		return &f.Base
	case *IntField:
		return &f.Base
	case *NumberField:
		return &f.Base
	case *BooleanField:
		return &f.Base
	case *NullField:
		return &f.Base
	case *ArrayField:
		return &f.Base
	case *ObjectField:
		return &f.Base
	case *MultiField:
		return &f.Base
	case *UndeclaredField:
		return &f.Base
	}
	return nil
}

// unionField emits an anyOf across the union's registered members,
// substituting a reference when a member is the enclosing parent type.
func (b *Builder) unionField(t reflect.Type, members []reflect.Type, opts FieldOpts, st *buildState) (Field, error) {
	fields := make([]Field, 0, len(members))
	for _, m := range members {
		// A nil member marks the union as nullable.
		if m == nil {
			fields = append(fields, &NullField{})
			continue
		}
		m, _ = serde.Normalize(m)
		if m == opts.Parent {
			fields = append(fields, &Ref{Path: refPath(defname(m, ""))})
			continue
		}
		f, err := b.field(b.resolver.Annotate(m), FieldOpts{Parent: opts.Parent}, st)
		if err != nil {
			emitSchemaFallback(m.String(), err)
			f = &UndeclaredField{}
		}
		fields = append(fields, f)
	}
	mf := &MultiField{AnyOf: fields}
	if opts.Name != "" {
		mf.Title = defname(t, opts.Name)
	}
	return mf, nil
}

// enumField inspects the member values: one shared concrete value type
// yields that type's scalar schema with the members inlined as enum;
// mixed-value enums yield an undeclared node carrying the enum.
func enumField(t reflect.Type, members []any) Field {
	valueTypes := make(map[reflect.Type]struct{}, len(members))
	var valueType reflect.Type
	for _, m := range members {
		valueType = reflect.TypeOf(m)
		valueTypes[valueType] = struct{}{}
	}
	if len(valueTypes) != 1 {
		return &UndeclaredField{Base: Base{Enum: members}}
	}
	kind := valueType.Kind()
	if valueType == t {
		kind = t.Kind()
	}
	f := scalarForKind(kind)
	if f == nil {
		return &UndeclaredField{Base: Base{Enum: members}}
	}
	baseOf(f).Enum = members
	return f
}

// scalarForKind returns the scalar node for a primitive kind, or nil.
func scalarForKind(k reflect.Kind) Field {
	switch k {
	case reflect.String:
		return &StrField{}
	case reflect.Bool:
		return &BooleanField{}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &IntField{}
	case reflect.Float32, reflect.Float64:
		return &NumberField{}
	}
	return nil
}

// mappingField emits key/value schemas for a homogeneous mapping.
func (b *Builder) mappingField(t reflect.Type, opts FieldOpts, st *buildState) Field {
	obj := &ObjectField{}
	if opts.Name != "" {
		obj.Title = defname(t, opts.Name)
	}
	elem := t.Elem()
	if elem.Kind() != reflect.Interface {
		ap, err := b.field(b.resolver.Annotate(elem), FieldOpts{Parent: opts.Parent}, st)
		if err != nil {
			emitSchemaFallback(elem.String(), err)
			ap = &UndeclaredField{}
		}
		obj.AdditionalProperties = ap
	}
	return obj
}

// arrayField emits the item schema; fixed-arity arrays disallow additional
// items.
func (b *Builder) arrayField(t reflect.Type, opts FieldOpts, st *buildState) Field {
	f := &ArrayField{}
	elem := t.Elem()
	if elem.Kind() != reflect.Interface {
		items, err := b.field(b.resolver.Annotate(elem), FieldOpts{Parent: opts.Parent}, st)
		if err != nil {
			emitSchemaFallback(elem.String(), err)
			items = &UndeclaredField{}
		}
		f.Items = items
	}
	if t.Kind() == reflect.Array {
		no := false
		f.AdditionalItems = &no
	}
	return f
}

// buildObject builds the object schema for a struct, hoisting nested named
// definitions into the schema's definitions registry.
func (b *Builder) buildObject(t reflect.Type, name string, st *buildState) (*ObjectField, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &BuildError{Type: typeName(t)}
	}

	b.mu.RLock()
	if cached, ok := b.objects[t]; ok {
		b.mu.RUnlock()
		return cached, nil
	}
	b.mu.RUnlock()

	st.stack[t] = true
	defer delete(st.stack, t)

	start := time.Now()
	fields, err := b.resolver.Protocols(t)
	if err != nil {
		return nil, &BuildError{Type: t.String(), Cause: err}
	}

	definitions := map[string]Field{}
	properties := make(map[string]Field, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		var flattened Field
		if f.Annotation.Type == t {
			// Self-referential field: point back at this schema.
			flattened = &Ref{Path: refPath(defname(t, ""))}
		} else {
			fld, ferr := b.field(f.Annotation, FieldOpts{Name: f.OutName, Parent: t}, st)
			if ferr != nil {
				emitSchemaFallback(f.Annotation.Type.String(), ferr)
				fld = &UndeclaredField{}
			}
			flattened = b.flatten(definitions, fld)
		}
		properties[f.OutName] = flattened
		if !f.Annotation.Optional && !f.Annotation.HasDefault {
			required = append(required, f.OutName)
		}
	}

	title := name
	if title == "" {
		title = defname(t, "")
	}
	obj := &ObjectField{
		Base:                 Base{Title: title},
		Properties:           properties,
		Required:             required,
		AdditionalProperties: false,
		Definitions:          definitions,
	}

	b.mu.Lock()
	if _, ok := b.objects[t]; !ok {
		b.objects[t] = obj
		b.order = append(b.order, t)
	}
	b.mu.Unlock()

	emitSchemaBuilt(t.String(), title, len(fields), time.Since(start))
	return obj, nil
}

// flatten hoists nested named composites into defs and replaces their
// occurrence with a reference pointer, preventing duplicate inline
// definitions.
func (b *Builder) flatten(defs map[string]Field, f Field) Field {
	switch f := f.(type) {
	case *ObjectField:
		if f.Title == "" {
			// Inline mapping schema, nothing to hoist by name; still
			// flatten a named value schema.
			if ap, ok := f.AdditionalProperties.(Field); ok {
				nested := b.flatten(defs, ap)
				if nested != ap {
					clone := *f
					clone.AdditionalProperties = nested
					return &clone
				}
			}
			return f
		}
		for k, v := range f.Definitions {
			defs[k] = v
		}
		defs[f.Title] = f.withoutDefinitions()
		return &Ref{Path: refPath(f.Title)}

	case *ArrayField:
		if f.Items != nil {
			nested := b.flatten(defs, f.Items)
			if nested != f.Items {
				clone := *f
				clone.Items = nested
				return &clone
			}
		}
		return f

	case *MultiField:
		clone := *f
		changed := false
		flattenAll := func(fields []Field) []Field {
			out := make([]Field, len(fields))
			for i, nested := range fields {
				out[i] = b.flatten(defs, nested)
				if out[i] != nested {
					changed = true
				}
			}
			return out
		}
		clone.AnyOf = flattenAll(f.AnyOf)
		clone.OneOf = flattenAll(f.OneOf)
		clone.AllOf = flattenAll(f.AllOf)
		if changed {
			return &clone
		}
		return f
	}
	return f
}

// All drains the attached set and returns every schema built so far as a
// flat definitions registry, with per-schema nested definitions hoisted to
// the top level.
func (b *Builder) All() Definitions {
	b.mu.Lock()
	pending := make([]reflect.Type, 0, len(b.attached))
	for t := range b.attached {
		pending = append(pending, t)
		delete(b.attached, t)
	}
	b.mu.Unlock()

	for _, t := range pending {
		if _, err := b.Build(t, ""); err != nil {
			emitSchemaFallback(typeName(t), err)
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	defs := make(map[string]Field, len(b.objects))
	for _, t := range b.order {
		obj := b.objects[t]
		for k, v := range obj.Definitions {
			defs[k] = v
		}
		defs[obj.Title] = obj.withoutDefinitions()
	}
	return Definitions{Definitions: defs}
}

// defname derives the camelized definition name for a type.
func defname(t reflect.Type, name string) string {
	if name == "" && t != nil {
		name = t.Name()
	}
	if name == "" {
		return ""
	}
	return strcase.ToCamel(name)
}

// refPath builds a definitions reference pointer.
func refPath(name string) string {
	return "#/definitions/" + name
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// definedField maps the defined-conversion types to their schema nodes.
func definedField(t reflect.Type) (Field, bool) {
	switch t {
	case reflect.TypeFor[time.Time]():
		return &StrField{Format: "date-time"}, true
	case reflect.TypeFor[time.Duration]():
		return &NumberField{}, true
	case reflect.TypeFor[uuid.UUID]():
		return &StrField{Format: "uuid"}, true
	case reflect.TypeFor[decimal.Decimal]():
		return &NumberField{}, true
	case reflect.TypeFor[*regexp.Regexp]():
		return &StrField{Format: "regex"}, true
	case reflect.TypeFor[net.IP](), reflect.TypeFor[netip.Addr]():
		return &StrField{Format: "ip-address"}, true
	case reflect.TypeFor[netip.Prefix]():
		return &StrField{}, true
	case reflect.TypeFor[url.URL]():
		return &StrField{Format: "uri"}, true
	case reflect.TypeFor[serde.Secret](), reflect.TypeFor[serde.SecretBytes]():
		return &StrField{}, true
	case reflect.TypeFor[[]byte]():
		return &StrField{}, true
	}
	return nil, false
}
