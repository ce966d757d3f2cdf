package serde

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for serializer compilation events.
var (
	SignalRoutineCompiled = capitan.NewSignal("serde.routine.compiled", "Serializer routine compiled")
	SignalRoutineCached   = capitan.NewSignal("serde.routine.cached", "Serializer routine served from cache")
	SignalEnumFallback    = capitan.NewSignal("serde.enum.fallback", "Heterogeneous enum fell back to dynamic dispatch")
)

// Keys for typed event data.
var (
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeySignature  = capitan.NewStringKey("signature")
	KeyStrategy   = capitan.NewStringKey("strategy")
	KeyFieldCount = capitan.NewIntKey("field_count")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitRoutineCompiled emits an event when a routine is compiled.
func emitRoutineCompiled(sig, typeName, strategy string, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeySignature.Field(sig),
		KeyTypeName.Field(typeName),
		KeyStrategy.Field(strategy),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(context.Background(), SignalRoutineCompiled, fields...)
		return
	}
	capitan.Emit(context.Background(), SignalRoutineCompiled, fields...)
}

// emitRoutineCached emits an event on a cache hit.
func emitRoutineCached(sig string) {
	capitan.Emit(context.Background(), SignalRoutineCached,
		KeySignature.Field(sig),
	)
}

// emitEnumFallback emits an event when an enum cannot be specialized.
func emitEnumFallback(typeName string) {
	capitan.Emit(context.Background(), SignalEnumFallback,
		KeyTypeName.Field(typeName),
	)
}
