// Package schema builds JSON-Schema style structural documents from
// resolved type annotations. Recursive types are broken with $ref pointers
// and every named definition is hoisted into a flat definitions registry.
package schema

import (
	"encoding/json"

	"github.com/goccy/go-yaml"
)

// Type identifies the node kind of a schema field.
type Type string

const (
	TypeObject     Type = "object"
	TypeArray      Type = "array"
	TypeString     Type = "string"
	TypeInteger    Type = "integer"
	TypeNumber     Type = "number"
	TypeBoolean    Type = "boolean"
	TypeNull       Type = "null"
	TypeMulti      Type = "multi"
	TypeRef        Type = "ref"
	TypeUndeclared Type = "undeclared"
)

// Field is a node in the structural schema document tree.
type Field interface {
	SchemaType() Type

	// Primitive renders the node to a plain JSON-Schema compatible
	// mapping using the fixed key set.
	Primitive() map[string]any
}

// Base carries the keys shared by every concrete schema node.
type Base struct {
	Title       string
	Description string
	Default     any
	ReadOnly    bool
	WriteOnly   bool
	Enum        []any

	// Extra holds constraint keywords contributed by a constraints
	// collaborator, merged verbatim into the rendered node.
	Extra map[string]any
}

// primitive renders the shared keys plus the node type.
func (b Base) primitive(t Type) map[string]any {
	out := map[string]any{}
	if t != TypeUndeclared && t != TypeMulti {
		out["type"] = string(t)
	}
	if b.Title != "" {
		out["title"] = b.Title
	}
	if b.Description != "" {
		out["description"] = b.Description
	}
	if b.Default != nil {
		out["default"] = b.Default
	}
	if b.ReadOnly {
		out["readOnly"] = true
	}
	if b.WriteOnly {
		out["writeOnly"] = true
	}
	if len(b.Enum) > 0 {
		out["enum"] = b.Enum
	}
	for k, v := range b.Extra {
		out[k] = v
	}
	return out
}

// setAccess applies read-only/write-only qualifiers. Implemented on Base so
// the builder can decorate any node through the Field interface.
func (b *Base) setAccess(ro, wo bool) {
	if ro {
		b.ReadOnly = true
	}
	if wo {
		b.WriteOnly = true
	}
}

// accessSetter is satisfied by every node embedding Base.
type accessSetter interface {
	setAccess(ro, wo bool)
}

// StrField describes a string node, optionally with a format hint.
type StrField struct {
	Base
	Format string
}

func (f *StrField) SchemaType() Type { return TypeString }

func (f *StrField) Primitive() map[string]any {
	out := f.primitive(TypeString)
	if f.Format != "" {
		out["format"] = f.Format
	}
	return out
}

// IntField describes an integer node.
type IntField struct {
	Base
}

func (f *IntField) SchemaType() Type { return TypeInteger }

func (f *IntField) Primitive() map[string]any { return f.primitive(TypeInteger) }

// NumberField describes a floating-point node.
type NumberField struct {
	Base
}

func (f *NumberField) SchemaType() Type { return TypeNumber }

func (f *NumberField) Primitive() map[string]any { return f.primitive(TypeNumber) }

// BooleanField describes a boolean node.
type BooleanField struct {
	Base
}

func (f *BooleanField) SchemaType() Type { return TypeBoolean }

func (f *BooleanField) Primitive() map[string]any { return f.primitive(TypeBoolean) }

// NullField describes a null node.
type NullField struct {
	Base
}

func (f *NullField) SchemaType() Type { return TypeNull }

func (f *NullField) Primitive() map[string]any { return f.primitive(TypeNull) }

// ArrayField describes a sequence node. AdditionalItems false marks
// fixed-arity tuples; UniqueItems marks set-like sequences.
type ArrayField struct {
	Base
	Items           Field
	AdditionalItems *bool
	UniqueItems     bool
}

func (f *ArrayField) SchemaType() Type { return TypeArray }

func (f *ArrayField) Primitive() map[string]any {
	out := f.primitive(TypeArray)
	if f.Items != nil {
		out["items"] = f.Items.Primitive()
	}
	if f.AdditionalItems != nil {
		out["additionalItems"] = *f.AdditionalItems
	}
	if f.UniqueItems {
		out["uniqueItems"] = true
	}
	return out
}

// ObjectField describes a mapping or structured-record node.
// AdditionalProperties is nil, a bool, or a Field describing the value
// schema of a homogeneous mapping.
type ObjectField struct {
	Base
	Properties           map[string]Field
	Required             []string
	AdditionalProperties any
	Definitions          map[string]Field
}

func (f *ObjectField) SchemaType() Type { return TypeObject }

func (f *ObjectField) Primitive() map[string]any {
	out := f.primitive(TypeObject)
	if f.Properties != nil {
		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v.Primitive()
		}
		out["properties"] = props
	}
	if f.Required != nil {
		out["required"] = f.Required
	}
	switch ap := f.AdditionalProperties.(type) {
	case nil:
	case bool:
		out["additionalProperties"] = ap
	case Field:
		out["additionalProperties"] = ap.Primitive()
	}
	if len(f.Definitions) > 0 {
		defs := make(map[string]any, len(f.Definitions))
		for k, v := range f.Definitions {
			defs[k] = v.Primitive()
		}
		out["definitions"] = defs
	}
	return out
}

// withoutDefinitions clones the node with its definitions stripped, for
// hoisting into a shared registry.
func (f *ObjectField) withoutDefinitions() *ObjectField {
	clone := *f
	clone.Definitions = nil
	return &clone
}

// MultiField describes a composite node (anyOf/oneOf/allOf).
type MultiField struct {
	Base
	AnyOf []Field
	OneOf []Field
	AllOf []Field
}

func (f *MultiField) SchemaType() Type { return TypeMulti }

func (f *MultiField) Primitive() map[string]any {
	out := f.primitive(TypeMulti)
	if len(f.AnyOf) > 0 {
		out["anyOf"] = primitiveAll(f.AnyOf)
	}
	if len(f.OneOf) > 0 {
		out["oneOf"] = primitiveAll(f.OneOf)
	}
	if len(f.AllOf) > 0 {
		out["allOf"] = primitiveAll(f.AllOf)
	}
	return out
}

func primitiveAll(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f.Primitive()
	}
	return out
}

// Ref is a named reference pointer to a hoisted definition.
type Ref struct {
	Path string
}

func (f *Ref) SchemaType() Type { return TypeRef }

func (f *Ref) Primitive() map[string]any {
	return map[string]any{"$ref": f.Path}
}

func (f *Ref) setAccess(ro, wo bool) {}

// UndeclaredField is the placeholder substituted when no schema strategy
// applies to a type. Schema generation is best-effort documentation, so
// this is preferred over failing the whole type graph.
type UndeclaredField struct {
	Base
}

func (f *UndeclaredField) SchemaType() Type { return TypeUndeclared }

func (f *UndeclaredField) Primitive() map[string]any { return f.primitive(TypeUndeclared) }

// Definitions is the flat registry of every named schema built so far.
type Definitions struct {
	Definitions map[string]Field
}

// Primitive renders the registry to a plain mapping.
func (d Definitions) Primitive() map[string]any {
	defs := make(map[string]any, len(d.Definitions))
	for k, v := range d.Definitions {
		defs[k] = v.Primitive()
	}
	return map[string]any{"definitions": defs}
}

// RenderJSON renders a schema node to JSON.
func RenderJSON(f Field) ([]byte, error) {
	return json.Marshal(f.Primitive())
}

// RenderYAML renders a schema node to YAML.
func RenderYAML(f Field) ([]byte, error) {
	return yaml.Marshal(f.Primitive())
}
