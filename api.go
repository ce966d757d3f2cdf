// Package serde provides runtime type-coercion, validation, and schema
// generation driven by compiled, cached serializer routines.
//
// Given a structural description of a type (primitive, collection, struct,
// registered enumeration or union, or constrained subtype), serde compiles a
// specialized serialization routine on first use and caches it keyed by the
// type's normalized signature. Serialization at runtime invokes the compiled
// routine directly; no dispatch logic runs on the hot path.
//
// # Compilation
//
// Routines are compiled by a Factory owned by a Resolver:
//
//	r := serde.NewResolver()
//	anno := r.Annotate(reflect.TypeOf(Point{}))
//	routine, _ := r.Factory().Compile(anno)
//
//	out, _ := routine(Point{X: 1, Y: 2}, false, "")
//	// out == map[string]any{"x": 1, "y": 2}
//
// Or through the package-level default resolver:
//
//	routine, _ := serde.For[Point]()
//
// # Lazy serialization
//
// Passing lazy=true to a routine returns a lazy container wrapper instead of
// a fully materialized structure. Wrappers defer per-element serialization
// until the element is read, memoize each computed value, and drop entries
// whose raw value is in the configured omit set:
//
//	out, _ := routine(point, true, "")
//	fields := out.(*serde.ClassFieldMap)
//	x, ok, _ := fields.Get("x") // serializes exactly this field
//
// Materializing a lazy wrapper yields the same value the eager path returns.
//
// # Defined conversions
//
// A fixed set of types carries a predefined conversion: time.Time to an
// ISO-8601 string (with an explicit +00:00 offset for unnamed UTC zones),
// time.Duration to total seconds, uuid.UUID, net addresses, URLs and
// regular expressions to strings, decimal.Decimal to a float, []byte to
// text, and Secret values to their revealed contents.
//
// # Enumerations and unions
//
// Go has no enum or union types, so both are declared on the Resolver:
//
//	r.RegisterEnum(reflect.TypeOf(Color(0)), 1, 2, 3)
//	r.RegisterUnion(reflect.TypeFor[Shape](), reflect.TypeOf(Circle{}), reflect.TypeOf(Rect{}))
//
// An enum whose member values share one concrete type serializes through
// that type's routine; a mixed-value enum falls back to runtime dispatch.
//
// # Schemas
//
// The schema subpackage walks the same annotations to emit a JSON-Schema
// style document tree, with recursive types broken by $ref pointers and all
// named definitions hoisted into a flat registry.
//
// # Errors
//
// Type mismatches surface immediately as a TypeMismatchError; serialization
// is the last step before data leaves the process and silent coercion would
// corrupt output. Schema building is best-effort and substitutes an
// undeclared placeholder where no strategy applies.
package serde

// Routine is a compiled, type-specialized serialization function.
//
// lazy permits returning a lazy container wrapper instead of a fully
// materialized structure. name is a human-readable field path used only in
// error messages.
//
// A Routine is pure: calling it twice on equal inputs with the same lazy
// flag yields equal outputs.
type Routine func(v any, lazy bool, name string) (any, error)

// lazyContainer is implemented by the lazy wrapper types.
type lazyContainer interface {
	materialize() (any, error)
}

// Materialize forces full evaluation of a lazy wrapper returned by a
// Routine. Non-wrapper values are returned unchanged, so it is safe to call
// on the result of any routine invocation.
func Materialize(v any) (any, error) {
	if lc, ok := v.(lazyContainer); ok {
		return lc.materialize()
	}
	return v, nil
}
