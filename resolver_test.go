package serde_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/serde-go/serde"
)

type account struct {
	User     string `json:"user"`
	Token    string `json:"-"`
	Attempts int    `json:"attempts,omitempty"`
	internal string
}

func TestProtocols(t *testing.T) {
	r := serde.NewResolver()
	fields, err := r.Protocols(reflect.TypeFor[account]())
	if err != nil {
		t.Fatalf("Protocols() error = %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("Protocols() returned %d fields, want 2: %+v", len(fields), fields)
	}
	if fields[0].Name != "User" || fields[0].OutName != "user" {
		t.Errorf("field 0 = %q/%q, want User/user", fields[0].Name, fields[0].OutName)
	}
	if fields[1].Name != "Attempts" || fields[1].OutName != "attempts" {
		t.Errorf("field 1 = %q/%q, want Attempts/attempts", fields[1].Name, fields[1].OutName)
	}
	if len(fields[1].Omit) != 1 || fields[1].Omit[0] != 0 {
		t.Errorf("omitempty field Omit = %v, want [0]", fields[1].Omit)
	}
}

func TestProtocolsNonStruct(t *testing.T) {
	r := serde.NewResolver()
	_, err := r.Protocols(reflect.TypeFor[int]())
	if !errors.Is(err, serde.ErrUnresolvable) {
		t.Errorf("Protocols(int) err = %v, want ErrUnresolvable", err)
	}
}

func TestProtocolsCached(t *testing.T) {
	r := serde.NewResolver()
	first, err := r.Protocols(reflect.TypeFor[account]())
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Protocols(reflect.TypeFor[account]())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached protocol scan differs from first scan")
	}
}

func TestAnnotate(t *testing.T) {
	r := serde.NewResolver()

	a := r.Annotate(reflect.TypeFor[*int]())
	if a.Type != reflect.TypeFor[int]() || !a.Optional {
		t.Errorf("Annotate(*int) = %v optional=%v, want int optional=true", a.Type, a.Optional)
	}

	a = r.Annotate(reflect.TypeFor[map[string]int]())
	wantArgs := []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[int]()}
	if !reflect.DeepEqual(a.Args, wantArgs) {
		t.Errorf("Annotate(map) Args = %v, want %v", a.Args, wantArgs)
	}

	a = r.Annotate(reflect.TypeFor[any]())
	if a.Static {
		t.Error("Annotate(any) Static = true, want false")
	}
}

func TestPrimitiveDynamic(t *testing.T) {
	r := serde.NewResolver()

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"nil", nil, nil},
		{"int", 3, 3},
		{"named string", grade("ok"), "ok"},
		{"nested map", map[string]any{"n": 1}, map[string]any{"n": 1}},
		{"slice", []any{1, "a"}, []any{1, "a"}},
		{"struct", point{X: 1, Y: 2}, map[string]any{"x": 1, "y": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Primitive(tt.input, false, "")
			if err != nil {
				t.Fatalf("Primitive() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Primitive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPrimitiveUnsupported(t *testing.T) {
	r := serde.NewResolver()
	_, err := r.Primitive(make(chan int), false, "queue")
	if !errors.Is(err, serde.ErrUnsupported) {
		t.Errorf("Primitive(chan) err = %v, want ErrUnsupported", err)
	}
}

func TestEnumRegistry(t *testing.T) {
	r := serde.NewResolver()
	r.RegisterEnum(reflect.TypeFor[color](), 1, 2)

	members, ok := r.EnumMembers(reflect.TypeFor[color]())
	if !ok {
		t.Fatal("EnumMembers() ok = false after registration")
	}
	if !reflect.DeepEqual(members, []any{1, 2}) {
		t.Errorf("EnumMembers() = %v, want [1 2]", members)
	}
	if _, ok := r.EnumMembers(reflect.TypeFor[int]()); ok {
		t.Error("EnumMembers(int) ok = true for unregistered type")
	}
}
