package serde

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// Factory compiles serializer routines and caches them by normalized type
// signature. The cache is write-once per key and lives for the process;
// compilation is pure, so redundant concurrent compilation produces
// equivalent routines and the last writer wins.
type Factory struct {
	resolver *Resolver

	mu    sync.RWMutex
	cache map[string]Routine
}

func newFactory(r *Resolver) *Factory {
	return &Factory{
		resolver: r,
		cache:    make(map[string]Routine),
	}
}

// Compile returns the serializer routine for the annotation, compiling and
// caching it on first use. Requesting the same normalized type twice
// returns the cached routine.
//
// Self-referential types are handled by registering an indirect placeholder
// under the signature before recursing into nested fields; the placeholder
// resolves to the finished routine once the outer compilation completes.
func (f *Factory) Compile(anno Annotation) (Routine, error) {
	sig := routineSignature(anno)

	// Fast path: read-lock cache check
	f.mu.RLock()
	if cached, ok := f.cache[sig]; ok {
		f.mu.RUnlock()
		emitRoutineCached(sig)
		return cached, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	// Double-check pattern
	if cached, ok := f.cache[sig]; ok {
		f.mu.Unlock()
		emitRoutineCached(sig)
		return cached, nil
	}

	// Register the placeholder before building so recursive field
	// compilation resolves to this entry instead of recursing forever.
	// The cell is always stored before ready closes, so a concurrent
	// caller that picked up the placeholder blocks until compilation
	// settles rather than dereferencing an empty cell.
	var cell atomic.Pointer[Routine]
	ready := make(chan struct{})
	indirect := Routine(func(v any, lazy bool, name string) (any, error) {
		r := cell.Load()
		if r == nil {
			<-ready
			r = cell.Load()
		}
		return (*r)(v, lazy, name)
	})
	f.cache[sig] = indirect
	f.mu.Unlock()

	start := time.Now()
	routine, strategy, err := f.build(anno)
	if err != nil {
		// Routines that already captured the placeholder resolve to the
		// compile failure instead of hanging or panicking.
		failure := Routine(func(any, bool, string) (any, error) {
			return nil, err
		})
		cell.Store(&failure)
		close(ready)
		f.mu.Lock()
		delete(f.cache, sig)
		f.mu.Unlock()
		emitRoutineCompiled(sig, qualname(anno.Type), strategy, time.Since(start), err)
		return nil, err
	}
	cell.Store(&routine)
	close(ready)

	// Swap the placeholder for the real routine; in-flight references to
	// the indirect routine keep working through the cell.
	f.mu.Lock()
	f.cache[sig] = routine
	f.mu.Unlock()

	emitRoutineCompiled(sig, qualname(anno.Type), strategy, time.Since(start), nil)
	return routine, nil
}

// build selects the encoding strategy for the annotation and generates the
// routine. Dispatch is resolved once here; the returned routine is
// monomorphic.
func (f *Factory) build(anno Annotation) (Routine, string, error) {
	t := anno.Type

	// Dynamic shapes defer entirely to runtime dispatch.
	if t == nil || t.Kind() == reflect.Interface || !anno.Static {
		return f.resolver.Primitive, "dynamic", nil
	}

	if members, ok := f.resolver.EnumMembers(t); ok {
		r, err := f.compileEnum(anno, members)
		return r, "enum", err
	}

	if isPrimitiveKind(t.Kind()) && t.PkgPath() == "" {
		return f.compilePrimitive(anno), "primitive", nil
	}

	if conv, ok := definedFor(t); ok {
		return f.compileDefined(anno, conv), "defined", nil
	}

	// Named types over a primitive kind convert to the base primitive.
	if isPrimitiveKind(t.Kind()) {
		base := kindBase(t.Kind())
		return f.compileDefined(anno, func(v any) (any, error) {
			return reflect.ValueOf(v).Convert(base).Interface(), nil
		}), "primitive_subtype", nil
	}

	switch t.Kind() {
	case reflect.Map:
		r, err := f.compileMap(anno)
		return r, "mapping", err
	case reflect.Slice, reflect.Array:
		r, err := f.compileList(anno)
		return r, "sequence", err
	case reflect.Struct:
		r, err := f.compileStruct(anno)
		return r, "struct", err
	}

	// Channels, funcs and the like have no static strategy; the dynamic
	// path reports them per value.
	return f.resolver.Primitive, "dynamic", nil
}

// prepare is the shared routine prelude: nil short-circuit for optional
// annotations, pointer unwrapping, and strict type validation against the
// compiled static type.
func prepare(v any, t reflect.Type, optional bool, name string) (reflect.Value, bool, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			rv = reflect.Value{}
			break
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		if optional {
			return reflect.Value{}, true, nil
		}
		return reflect.Value{}, false, newTypeMismatch("nil", qualname(t), name, true)
	}
	if err := validateType(rv.Type(), t, name); err != nil {
		return reflect.Value{}, false, err
	}
	return rv, false, nil
}

// validateType enforces the instance-or-named-subtype rule: the runtime
// type must be the compiled type, or a defined type sharing its kind.
func validateType(vt, t reflect.Type, name string) error {
	if vt == t {
		return nil
	}
	if vt.Kind() == t.Kind() && vt.ConvertibleTo(t) {
		return nil
	}
	return newTypeMismatch(qualname(vt), qualname(t), name, true)
}

// compilePrimitive generates the pass-through routine for an exact builtin
// primitive: null check, type validation, value unchanged.
func (f *Factory) compilePrimitive(anno Annotation) Routine {
	t := anno.Type
	optional := anno.Optional
	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		return rv.Interface(), nil
	}
}

// compileDefined generates a routine applying exactly one predefined
// conversion after the shared prelude.
func (f *Factory) compileDefined(anno Annotation, conv func(any) (any, error)) Routine {
	t := anno.Type
	optional := anno.Optional
	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		return conv(rv.Interface())
	}
}

// compileEnum specializes on the shared member-value type when exactly one
// concrete type spans all members, delegating to that type's routine.
// Mixed-value enums cannot specialize safely and fall back to dynamic
// dispatch.
func (f *Factory) compileEnum(anno Annotation, members []any) (Routine, error) {
	valueTypes := make(map[reflect.Type]struct{}, len(members))
	var valueType reflect.Type
	for _, m := range members {
		valueType = reflect.TypeOf(m)
		valueTypes[valueType] = struct{}{}
	}
	if len(valueTypes) != 1 {
		emitEnumFallback(qualname(anno.Type))
		return f.resolver.Primitive, nil
	}

	// Members declared as values of the enum type itself would compile
	// back into this routine; dispatch those dynamically.
	var vser Routine = f.resolver.Primitive
	if valueType != anno.Type {
		va := f.resolver.Annotate(valueType, WithSerde(anno.Serde.propagated()))
		compiled, err := f.Compile(va)
		if err != nil {
			return nil, err
		}
		vser = compiled
	}

	t := anno.Type
	optional := anno.Optional
	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		// Extract the member value and delegate.
		return vser(rv.Convert(valueType).Interface(), lazy, name)
	}, nil
}

// compileList generates the sequence routine. A typed element compiles a
// dedicated element routine wrapped in a lazy SerList; an untyped sequence
// serializes by direct expansion with no per-element transformation.
func (f *Factory) compileList(anno Annotation) (Routine, error) {
	t := anno.Type
	optional := anno.Optional
	omit := anno.Serde.OmitValues

	elem := t.Elem()
	if len(anno.Args) > 0 {
		elem = anno.Args[0]
	}
	if elem.Kind() == reflect.Interface {
		// Untyped: expand as-is.
		return func(v any, lazy bool, name string) (any, error) {
			rv, isNil, err := prepare(v, t, optional, name)
			if err != nil {
				return nil, err
			}
			if isNil {
				return nil, nil
			}
			out := make([]any, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out[i] = rv.Index(i).Interface()
			}
			return out, nil
		}, nil
	}

	elemAnno := f.resolver.Annotate(elem, WithSerde(anno.Serde.propagated()))
	elemSer, err := f.Compile(elemAnno)
	if err != nil {
		return nil, err
	}

	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		w := newSerList(rv, elemSer, omit, lazy, name)
		if lazy {
			return w, nil
		}
		return w.Materialize()
	}, nil
}

// compileMap generates the mapping routine: a key pipeline (rename, case
// transform, stringify) and a value routine, wrapped in a lazy KVMap.
func (f *Factory) compileMap(anno Annotation) (Routine, error) {
	t := anno.Type
	optional := anno.Optional
	serde := anno.Serde
	omit := serde.OmitValues

	kt, vt := t.Key(), t.Elem()
	if len(anno.Args) == 2 {
		kt, vt = anno.Args[0], anno.Args[1]
	}
	var vser Routine = f.resolver.Primitive
	var kser Routine = f.resolver.Primitive
	if kt.Kind() != reflect.Interface {
		ka := f.resolver.Annotate(kt, WithSerde(serde.propagated()))
		compiled, err := f.Compile(ka)
		if err != nil {
			return nil, err
		}
		kser = compiled
	}
	if vt.Kind() != reflect.Interface {
		va := f.resolver.Annotate(vt, WithSerde(serde.propagated()))
		compiled, err := f.Compile(va)
		if err != nil {
			return nil, err
		}
		vser = compiled
	}

	keyFn := buildKeySerializer(kser, serde)

	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		w, err := newKVMap(rv, keyFn, vser, omit, lazy, name)
		if err != nil {
			return nil, err
		}
		if lazy {
			return w, nil
		}
		return w.Materialize()
	}, nil
}

// buildKeySerializer composes the key pipeline: field-name-out mapping if
// configured, then the case transform, then key serialization to a string.
func buildKeySerializer(kser Routine, serde *SerdeConfig) func(any) (string, error) {
	return func(k any) (string, error) {
		if s, ok := k.(string); ok && serde != nil {
			if mapped, found := serde.FieldsOut[s]; found {
				k = mapped
			}
		}
		out, err := kser(k, false, "")
		if err != nil {
			return "", err
		}
		key := stringifyKey(out)
		if serde != nil {
			key = serde.Case.Transform(key)
		}
		return key, nil
	}
}

// compileStruct generates the structured-record routine: one routine per
// declared field, bound with its getter and serialized name into a lazy
// ClassFieldMap.
func (f *Factory) compileStruct(anno Annotation) (Routine, error) {
	t := anno.Type
	optional := anno.Optional
	serde := anno.Serde

	fields, err := f.resolver.Protocols(t)
	if err != nil {
		return nil, err
	}

	bound := make([]boundField, 0, len(fields))
	for _, field := range fields {
		fieldAnno := field.Annotation
		fieldAnno.Serde = serde.propagated()
		ser, err := f.Compile(fieldAnno)
		if err != nil {
			return nil, err
		}
		omit := field.Omit
		if serde != nil && len(serde.OmitValues) > 0 {
			omit = append(append([]any{}, omit...), serde.OmitValues...)
		}
		// Renames key on the declared field name; the json tag name is
		// the default, and the case transform applies last.
		key := field.OutName
		if serde != nil {
			if mapped, ok := serde.FieldsOut[field.Name]; ok {
				key = mapped
			}
			key = serde.Case.Transform(key)
		}
		bound = append(bound, boundField{
			key:   key,
			index: field.Index,
			ser:   ser,
			omit:  omit,
		})
	}

	return func(v any, lazy bool, name string) (any, error) {
		rv, isNil, err := prepare(v, t, optional, name)
		if err != nil {
			return nil, err
		}
		if isNil {
			return nil, nil
		}
		w := newClassFieldMap(rv, bound, lazy, name)
		if lazy {
			return w, nil
		}
		return w.Materialize()
	}, nil
}
