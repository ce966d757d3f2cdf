package serde

import (
	"reflect"
	"sync"
)

var (
	defaultMu       sync.RWMutex
	defaultResolver = NewResolver()
)

// Default returns the package-level resolver backing the generic helpers.
func Default() *Resolver {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultResolver
}

// Reset replaces the default resolver, discarding every cached routine,
// protocol scan, and registration. This is primarily useful for test
// isolation.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResolver = NewResolver()
}

// For returns the cached serializer routine for T, compiling it on first
// use through the default resolver.
func For[T any](opts ...ResolveOption) (Routine, error) {
	return Compile(reflect.TypeFor[T](), opts...)
}

// Compile resolves t and returns its serializer routine through the
// default resolver.
func Compile(t reflect.Type, opts ...ResolveOption) (Routine, error) {
	r := Default()
	return r.Factory().Compile(r.Annotate(t, opts...))
}

// RegisterEnum declares an enumeration on the default resolver.
func RegisterEnum(t reflect.Type, values ...any) {
	Default().RegisterEnum(t, values...)
}

// RegisterUnion declares a union on the default resolver.
func RegisterUnion(iface reflect.Type, members ...reflect.Type) {
	Default().RegisterUnion(iface, members...)
}
