package schema

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for schema generation events.
var (
	SignalSchemaBuilt    = capitan.NewSignal("serde.schema.built", "Object schema built")
	SignalSchemaFallback = capitan.NewSignal("serde.schema.fallback", "Type fell back to an undeclared schema")
)

// Keys for typed event data.
var (
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeySchemaName = capitan.NewStringKey("schema_name")
	KeyFieldCount = capitan.NewIntKey("field_count")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// emitSchemaBuilt emits an event when an object schema is built.
func emitSchemaBuilt(typeName, schemaName string, fields int, duration time.Duration) {
	capitan.Emit(context.Background(), SignalSchemaBuilt,
		KeyTypeName.Field(typeName),
		KeySchemaName.Field(schemaName),
		KeyFieldCount.Field(fields),
		KeyDuration.Field(duration),
	)
}

// emitSchemaFallback emits a warning event when a type cannot be mapped and
// an undeclared placeholder is substituted.
func emitSchemaFallback(typeName string, err error) {
	capitan.Error(context.Background(), SignalSchemaFallback,
		KeyTypeName.Field(typeName),
		KeyError.Field(err),
	)
}
