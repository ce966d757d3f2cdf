package schema_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/serde-go/serde"
	"github.com/serde-go/serde/constraints"
	"github.com/serde-go/serde/schema"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type node struct {
	Value int   `json:"value"`
	Next  *node `json:"next,omitempty"`
}

type inner struct {
	Label string `json:"label"`
}

type outer struct {
	Inner inner `json:"inner"`
}

type username string

type color int

type shape interface{}

type circle struct {
	Radius float64 `json:"radius"`
}

type square struct {
	Side float64 `json:"side"`
}

func newBuilder() (*serde.Resolver, *schema.Builder) {
	r := serde.NewResolver()
	return r, schema.NewBuilder(r)
}

func iptr(i int) *int { return &i }

func TestBuildObject(t *testing.T) {
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[point](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if obj.Title != "Point" {
		t.Errorf("Title = %q, want Point", obj.Title)
	}
	if _, ok := obj.Properties["x"].(*schema.IntField); !ok {
		t.Errorf("properties[x] = %T, want *IntField", obj.Properties["x"])
	}
	if !reflect.DeepEqual(obj.Required, []string{"x", "y"}) {
		t.Errorf("Required = %v, want [x y]", obj.Required)
	}
	if ap, ok := obj.AdditionalProperties.(bool); !ok || ap {
		t.Errorf("AdditionalProperties = %v, want false", obj.AdditionalProperties)
	}
}

func TestBuildObjectPrimitive(t *testing.T) {
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[point](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	out := obj.Primitive()
	if out["type"] != "object" {
		t.Errorf("type = %v, want object", out["type"])
	}
	props, ok := out["properties"].(map[string]any)
	if !ok {
		t.Fatalf("properties = %T, want map", out["properties"])
	}
	x, ok := props["x"].(map[string]any)
	if !ok || x["type"] != "integer" {
		t.Errorf("properties[x] = %v, want integer node", props["x"])
	}
	if out["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v, want false", out["additionalProperties"])
	}
}

func TestBuildNonStruct(t *testing.T) {
	_, b := newBuilder()
	_, err := b.Build(reflect.TypeFor[int](), "")
	if !errors.Is(err, schema.ErrBuild) {
		t.Errorf("Build(int) err = %v, want ErrBuild", err)
	}
}

func TestOptionalFieldNotRequired(t *testing.T) {
	type form struct {
		Name string  `json:"name"`
		Note *string `json:"note"`
	}
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[form](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !reflect.DeepEqual(obj.Required, []string{"name"}) {
		t.Errorf("Required = %v, want [name]", obj.Required)
	}
}

func TestSelfReferenceBecomesRef(t *testing.T) {
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[node](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ref, ok := obj.Properties["next"].(*schema.Ref)
	if !ok {
		t.Fatalf("properties[next] = %T, want *Ref", obj.Properties["next"])
	}
	if ref.Path != "#/definitions/Node" {
		t.Errorf("ref path = %q, want #/definitions/Node", ref.Path)
	}
}

func TestNestedObjectHoisted(t *testing.T) {
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[outer](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ref, ok := obj.Properties["inner"].(*schema.Ref)
	if !ok {
		t.Fatalf("properties[inner] = %T, want *Ref", obj.Properties["inner"])
	}
	if ref.Path != "#/definitions/Inner" {
		t.Errorf("ref path = %q, want #/definitions/Inner", ref.Path)
	}
	def, ok := obj.Definitions["Inner"].(*schema.ObjectField)
	if !ok {
		t.Fatalf("definitions[Inner] = %T, want *ObjectField", obj.Definitions["Inner"])
	}
	if _, ok := def.Properties["label"].(*schema.StrField); !ok {
		t.Errorf("hoisted Inner properties[label] = %T, want *StrField", def.Properties["label"])
	}
}

func TestUnionAnyOf(t *testing.T) {
	r, b := newBuilder()
	r.RegisterUnion(reflect.TypeFor[shape](),
		reflect.TypeFor[circle](), reflect.TypeFor[square]())

	f, err := b.Field(r.Annotate(reflect.TypeFor[shape]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	mf, ok := f.(*schema.MultiField)
	if !ok {
		t.Fatalf("union field = %T, want *MultiField", f)
	}
	if len(mf.AnyOf) != 2 {
		t.Fatalf("anyOf has %d members, want 2", len(mf.AnyOf))
	}
	first, ok := mf.AnyOf[0].(*schema.ObjectField)
	if !ok || first.Title != "Circle" {
		t.Errorf("anyOf[0] = %T title=%v, want Circle object", mf.AnyOf[0], mf.AnyOf[0])
	}
}

func TestNullableUnion(t *testing.T) {
	r, b := newBuilder()
	r.RegisterUnion(reflect.TypeFor[shape](), nil, reflect.TypeFor[circle]())

	f, err := b.Field(r.Annotate(reflect.TypeFor[shape]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	mf, ok := f.(*schema.MultiField)
	if !ok {
		t.Fatalf("union field = %T, want *MultiField", f)
	}
	if len(mf.AnyOf) != 2 {
		t.Fatalf("anyOf has %d members, want 2", len(mf.AnyOf))
	}
	null, ok := mf.AnyOf[0].(*schema.NullField)
	if !ok {
		t.Fatalf("anyOf[0] = %T, want *NullField", mf.AnyOf[0])
	}
	if out := null.Primitive(); out["type"] != "null" {
		t.Errorf("null node renders type %v, want null", out["type"])
	}
}

func TestUnregisteredInterfaceUndeclared(t *testing.T) {
	r, b := newBuilder()
	f, err := b.Field(r.Annotate(reflect.TypeFor[any]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	if _, ok := f.(*schema.UndeclaredField); !ok {
		t.Errorf("field = %T, want *UndeclaredField", f)
	}
}

func TestEnumField(t *testing.T) {
	r, b := newBuilder()
	r.RegisterEnum(reflect.TypeFor[color](), 1, 2, 3)

	f, err := b.Field(r.Annotate(reflect.TypeFor[color]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	intField, ok := f.(*schema.IntField)
	if !ok {
		t.Fatalf("enum field = %T, want *IntField", f)
	}
	if !reflect.DeepEqual(intField.Enum, []any{1, 2, 3}) {
		t.Errorf("Enum = %v, want [1 2 3]", intField.Enum)
	}
}

func TestEnumMixedValuesUndeclared(t *testing.T) {
	r, b := newBuilder()
	r.RegisterEnum(reflect.TypeFor[color](), "a", 1)

	f, err := b.Field(r.Annotate(reflect.TypeFor[color]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	uf, ok := f.(*schema.UndeclaredField)
	if !ok {
		t.Fatalf("mixed enum field = %T, want *UndeclaredField", f)
	}
	if !reflect.DeepEqual(uf.Enum, []any{"a", 1}) {
		t.Errorf("Enum = %v, want [a 1]", uf.Enum)
	}
}

func TestMappingField(t *testing.T) {
	r, b := newBuilder()
	f, err := b.Field(r.Annotate(reflect.TypeFor[map[string]int]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	obj, ok := f.(*schema.ObjectField)
	if !ok {
		t.Fatalf("mapping field = %T, want *ObjectField", f)
	}
	if _, ok := obj.AdditionalProperties.(*schema.IntField); !ok {
		t.Errorf("AdditionalProperties = %T, want *IntField", obj.AdditionalProperties)
	}
}

func TestArrayFields(t *testing.T) {
	r, b := newBuilder()

	f, err := b.Field(r.Annotate(reflect.TypeFor[[]string]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	arr, ok := f.(*schema.ArrayField)
	if !ok {
		t.Fatalf("slice field = %T, want *ArrayField", f)
	}
	if _, ok := arr.Items.(*schema.StrField); !ok {
		t.Errorf("Items = %T, want *StrField", arr.Items)
	}
	if arr.AdditionalItems != nil {
		t.Error("slice field has AdditionalItems set")
	}

	f, err = b.Field(r.Annotate(reflect.TypeFor[[2]bool]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	fixed, ok := f.(*schema.ArrayField)
	if !ok {
		t.Fatalf("array field = %T, want *ArrayField", f)
	}
	if fixed.AdditionalItems == nil || *fixed.AdditionalItems {
		t.Error("fixed-arity array should disallow additional items")
	}
}

func TestConstraintsMergedIntoField(t *testing.T) {
	r, b := newBuilder()
	r.SetConstraints(reflect.TypeFor[username](),
		constraints.Text{MinLength: iptr(3), Pattern: "^[a-z]+$"})

	f, err := b.Field(r.Annotate(reflect.TypeFor[username]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	out := f.Primitive()
	if out["type"] != "string" {
		t.Errorf("type = %v, want string", out["type"])
	}
	if out["minLength"] != 3 {
		t.Errorf("minLength = %v, want 3", out["minLength"])
	}
	if out["pattern"] != "^[a-z]+$" {
		t.Errorf("pattern = %v, want ^[a-z]+$", out["pattern"])
	}
}

func TestReadOnlyDefaultIsConst(t *testing.T) {
	r, b := newBuilder()
	f, err := b.Field(
		r.Annotate(reflect.TypeFor[string](), serde.WithReadOnly(), serde.WithDefault("v1")),
		schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	sf, ok := f.(*schema.StrField)
	if !ok {
		t.Fatalf("field = %T, want *StrField", f)
	}
	if !sf.ReadOnly {
		t.Error("ReadOnly = false")
	}
	if sf.Default != "v1" {
		t.Errorf("Default = %v, want v1", sf.Default)
	}
	if !reflect.DeepEqual(sf.Enum, []any{"v1"}) {
		t.Errorf("Enum = %v, want [v1] (read-only default is a constant)", sf.Enum)
	}
}

func TestDefinedTypeSchemas(t *testing.T) {
	r, b := newBuilder()

	f, err := b.Field(r.Annotate(reflect.TypeFor[time.Time]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	sf, ok := f.(*schema.StrField)
	if !ok || sf.Format != "date-time" {
		t.Errorf("time field = %T format=%v, want StrField date-time", f, f)
	}

	f, err = b.Field(r.Annotate(reflect.TypeFor[time.Duration]()), schema.FieldOpts{})
	if err != nil {
		t.Fatalf("Field() error = %v", err)
	}
	if _, ok := f.(*schema.NumberField); !ok {
		t.Errorf("duration field = %T, want *NumberField", f)
	}
}

func TestAttachAndAll(t *testing.T) {
	_, b := newBuilder()
	b.Attach(reflect.TypeFor[point]())
	b.Attach(reflect.TypeFor[outer]())

	defs := b.All()
	if _, ok := defs.Definitions["Point"]; !ok {
		t.Error("All() missing Point definition")
	}
	if _, ok := defs.Definitions["Outer"]; !ok {
		t.Error("All() missing Outer definition")
	}
	if _, ok := defs.Definitions["Inner"]; !ok {
		t.Error("All() did not hoist the nested Inner definition")
	}

	out := defs.Primitive()
	if _, ok := out["definitions"].(map[string]any); !ok {
		t.Fatalf("Primitive() definitions = %T, want map", out["definitions"])
	}
}

func TestRenderJSON(t *testing.T) {
	_, b := newBuilder()
	obj, err := b.Build(reflect.TypeFor[point](), "")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	raw, err := schema.RenderJSON(obj)
	if err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("rendered schema is not valid JSON: %v", err)
	}
	if decoded["type"] != "object" || decoded["title"] != "Point" {
		t.Errorf("rendered schema = %v", decoded)
	}
}
