package serde

import (
	"reflect"
	"strings"
)

// Normalize reduces a raw type to its canonical form: pointer wrappers are
// stripped and reported as the optional flag. Two type expressions that are
// semantically identical normalize to the same (type, optional) pair.
//
// Normalize is a pure function; access qualifiers (read-only, write-only)
// are tracked on the Annotation and never affect the canonical form.
func Normalize(t reflect.Type) (reflect.Type, bool) {
	optional := false
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
		optional = true
	}
	return t, optional
}

// Signature derives the deterministic cache key for a normalized type.
// Structurally equal annotations produce identical signatures.
func Signature(t reflect.Type, optional bool) string {
	var b strings.Builder
	b.WriteString("serializer_")
	b.WriteString(mangle(t))
	if optional {
		b.WriteString("_opt")
	}
	return b.String()
}

// mangle renders a type name using only word characters so signatures are
// safe to use as identifiers and map keys.
func mangle(t reflect.Type) string {
	if t == nil {
		return "any"
	}
	name := t.String()
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// routineSignature extends the canonical type signature with a digest of
// the annotation's serde configuration, so differently configured routines
// for one type do not collide in the cache.
func routineSignature(a Annotation) string {
	sig := Signature(a.Type, a.Optional)
	if d := a.Serde.digest(); d != "" {
		sig += "_" + d
	}
	return sig
}

// qualname renders the qualified display name for a type, used in error
// messages and schema titles.
func qualname(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
