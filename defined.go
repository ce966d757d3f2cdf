package serde

import (
	"net"
	"net/netip"
	"net/url"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// definedConversion pairs a type with its predefined conversion function.
// The table is consulted in declaration order at compile time only; the
// compiled routine is monomorphic and applies exactly one conversion.
type definedConversion struct {
	typ  reflect.Type
	conv func(v any) (any, error)
}

// isoOffsetLayout always renders a numeric offset, so unnamed UTC times
// serialize with an explicit +00:00 suffix rather than Z.
const isoOffsetLayout = "2006-01-02T15:04:05.999999999-07:00"

var definedConversions = []definedConversion{
	{reflect.TypeFor[time.Time](), func(v any) (any, error) {
		return v.(time.Time).Format(isoOffsetLayout), nil
	}},
	{reflect.TypeFor[time.Duration](), func(v any) (any, error) {
		return v.(time.Duration).Seconds(), nil
	}},
	{reflect.TypeFor[uuid.UUID](), func(v any) (any, error) {
		return v.(uuid.UUID).String(), nil
	}},
	{reflect.TypeFor[decimal.Decimal](), func(v any) (any, error) {
		return v.(decimal.Decimal).InexactFloat64(), nil
	}},
	{reflect.TypeFor[regexp.Regexp](), func(v any) (any, error) {
		re := v.(regexp.Regexp)
		return re.String(), nil
	}},
	{reflect.TypeFor[net.IP](), func(v any) (any, error) {
		return v.(net.IP).String(), nil
	}},
	{reflect.TypeFor[netip.Addr](), func(v any) (any, error) {
		return v.(netip.Addr).String(), nil
	}},
	{reflect.TypeFor[netip.Prefix](), func(v any) (any, error) {
		return v.(netip.Prefix).String(), nil
	}},
	{reflect.TypeFor[url.URL](), func(v any) (any, error) {
		u := v.(url.URL)
		return u.String(), nil
	}},
	{reflect.TypeFor[Secret](), func(v any) (any, error) {
		return v.(Secret).Reveal(), nil
	}},
	{reflect.TypeFor[SecretBytes](), func(v any) (any, error) {
		return string(v.(SecretBytes).Reveal()), nil
	}},
	{reflect.TypeFor[[]byte](), func(v any) (any, error) {
		return string(v.([]byte)), nil
	}},
}

// definedFor returns the conversion for t: an exact match first, then the
// first entry t is a named subtype of, in declaration order. The subtype
// wrapper converts the value to the base type before applying the
// conversion, mirroring subclass handling.
//
// Subtype matching skips entries whose base is itself a primitive kind
// (time.Duration is an int64): an unrelated named integer is not a subtype
// of Duration, it belongs to the base-kind conversion.
func definedFor(t reflect.Type) (func(any) (any, error), bool) {
	for _, d := range definedConversions {
		if t == d.typ {
			return d.conv, true
		}
	}
	for _, d := range definedConversions {
		if isPrimitiveKind(d.typ.Kind()) {
			continue
		}
		if isNamedSubtype(t, d.typ) {
			base, conv := d.typ, d.conv
			return func(v any) (any, error) {
				return conv(reflect.ValueOf(v).Convert(base).Interface())
			}, true
		}
	}
	return nil, false
}

// isNamedSubtype reports whether t is a defined type over base: same kind,
// convertible, and not base itself.
func isNamedSubtype(t, base reflect.Type) bool {
	return t != base &&
		t.PkgPath() != "" &&
		t.Kind() == base.Kind() &&
		t.ConvertibleTo(base)
}
