package serde

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"

	"github.com/iancoleman/strcase"
)

// CaseStyle selects the case transform applied to serialized field names.
type CaseStyle int

const (
	CaseNone CaseStyle = iota
	CaseSnake
	CaseCamel
	CaseLowerCamel
	CaseKebab
	CaseScreamingSnake
)

// Transform applies the case style to s. CaseNone returns s unchanged.
func (c CaseStyle) Transform(s string) string {
	switch c {
	case CaseSnake:
		return strcase.ToSnake(s)
	case CaseCamel:
		return strcase.ToCamel(s)
	case CaseLowerCamel:
		return strcase.ToLowerCamel(s)
	case CaseKebab:
		return strcase.ToKebab(s)
	case CaseScreamingSnake:
		return strcase.ToScreamingSnake(s)
	default:
		return s
	}
}

// SerdeConfig carries the key/value transformation pipeline attached to an
// annotation: field renaming, name case transforms, and raw values that are
// omitted from serialized output.
//
// A SerdeConfig is resolved once per annotation and shared by the compiled
// routine; it is never mutated after resolution.
type SerdeConfig struct {
	// FieldsOut maps declared field names to their serialized names.
	// Applied before the case transform.
	FieldsOut map[string]string

	// OmitValues holds raw values excluded from serialized output.
	// Comparison is by deep equality.
	OmitValues []any

	// Case is the case transform applied to serialized field and map keys.
	Case CaseStyle
}

// digest renders a deterministic fingerprint of the configuration for use
// in routine cache keys. The zero configuration digests to the empty
// string.
func (c *SerdeConfig) digest() string {
	if c == nil || (c.Case == CaseNone && len(c.FieldsOut) == 0 && len(c.OmitValues) == 0) {
		return ""
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "case=%d;", c.Case)
	names := make([]string, 0, len(c.FieldsOut))
	for k := range c.FieldsOut {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(h, "out=%s:%s;", k, c.FieldsOut[k])
	}
	for _, v := range c.OmitValues {
		fmt.Fprintf(h, "omit=%T:%v;", v, v)
	}
	return fmt.Sprintf("cfg%016x", h.Sum64())
}

// propagated returns the portion of the configuration inherited by nested
// annotations: the case transform and omit set travel down the type graph,
// field renames do not.
func (c *SerdeConfig) propagated() *SerdeConfig {
	if c == nil {
		return &SerdeConfig{}
	}
	return &SerdeConfig{Case: c.Case, OmitValues: c.OmitValues}
}

// Annotation is the resolved structural description of a type occurrence.
// It is immutable once resolved; identity for caching purposes is the
// normalized type signature, so structurally equal annotations share one
// compiled routine.
type Annotation struct {
	// Type is the resolved concrete type with optionality wrappers
	// stripped. Nil for fully dynamic annotations.
	Type reflect.Type

	// Raw is the type as originally presented, before normalization.
	Raw reflect.Type

	// Args holds the generic type arguments in order: [elem] for
	// sequences, [key, elem] for maps.
	Args []reflect.Type

	// Optional is set when the raw type carried a pointer wrapper. An
	// optional routine short-circuits nil input to nil output.
	Optional bool

	// ReadOnly and WriteOnly record stripped access qualifiers. They
	// never participate in the type signature.
	ReadOnly  bool
	WriteOnly bool

	// HasDefault and Default describe a declared default value.
	HasDefault bool
	Default    any

	// Static is false when the type cannot be resolved to a concrete
	// runtime shape and serialization must dispatch per value.
	Static bool

	Serde *SerdeConfig
}

// ResolveOption customizes annotation resolution.
type ResolveOption func(*Annotation)

// WithReadOnly marks the annotation read-only.
func WithReadOnly() ResolveOption {
	return func(a *Annotation) { a.ReadOnly = true }
}

// WithWriteOnly marks the annotation write-only.
func WithWriteOnly() ResolveOption {
	return func(a *Annotation) { a.WriteOnly = true }
}

// WithDefault attaches a default value.
func WithDefault(v any) ResolveOption {
	return func(a *Annotation) {
		a.HasDefault = true
		a.Default = v
	}
}

// WithOptional forces the optionality flag regardless of pointer wrapping.
func WithOptional() ResolveOption {
	return func(a *Annotation) { a.Optional = true }
}

// WithSerde attaches a full serde configuration.
func WithSerde(cfg *SerdeConfig) ResolveOption {
	return func(a *Annotation) { a.Serde = cfg }
}

// WithCase sets the case transform on the annotation's serde configuration.
func WithCase(c CaseStyle) ResolveOption {
	return func(a *Annotation) {
		a.Serde = ensureSerde(a.Serde)
		a.Serde.Case = c
	}
}

// WithOmit adds raw values to the omit set.
func WithOmit(values ...any) ResolveOption {
	return func(a *Annotation) {
		a.Serde = ensureSerde(a.Serde)
		a.Serde.OmitValues = append(a.Serde.OmitValues, values...)
	}
}

// WithRenames adds declared-name to serialized-name mappings.
func WithRenames(renames map[string]string) ResolveOption {
	return func(a *Annotation) {
		a.Serde = ensureSerde(a.Serde)
		if a.Serde.FieldsOut == nil {
			a.Serde.FieldsOut = make(map[string]string, len(renames))
		}
		for k, v := range renames {
			a.Serde.FieldsOut[k] = v
		}
	}
}

func ensureSerde(cfg *SerdeConfig) *SerdeConfig {
	if cfg == nil {
		return &SerdeConfig{}
	}
	return cfg
}

// valueOmitted reports whether raw deep-equals any member of omit.
func valueOmitted(raw any, omit []any) bool {
	for _, o := range omit {
		if reflect.DeepEqual(raw, o) {
			return true
		}
	}
	return false
}
