// Package constraints defines the value-constraint collaborators consumed
// by the schema builder. Each constraint set renders itself to the schema
// keywords it contributes; the builder treats that mapping opaquely.
package constraints

// Constraints is the contract every constraint set satisfies.
type Constraints interface {
	// ForSchema returns the schema keywords contributed by this
	// constraint set, keyed by keyword name.
	ForSchema() map[string]any
}

// Number constrains numeric values.
type Number struct {
	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64
}

func (c Number) ForSchema() map[string]any {
	out := map[string]any{}
	putFloat(out, "minimum", c.Minimum)
	putFloat(out, "maximum", c.Maximum)
	putFloat(out, "exclusiveMinimum", c.ExclusiveMinimum)
	putFloat(out, "exclusiveMaximum", c.ExclusiveMaximum)
	putFloat(out, "multipleOf", c.MultipleOf)
	return out
}

// Text constrains string values.
type Text struct {
	MinLength *int
	MaxLength *int
	Pattern   string
}

func (c Text) ForSchema() map[string]any {
	out := map[string]any{}
	putInt(out, "minLength", c.MinLength)
	putInt(out, "maxLength", c.MaxLength)
	if c.Pattern != "" {
		out["pattern"] = c.Pattern
	}
	return out
}

// Array constrains sequence values.
type Array struct {
	MinItems    *int
	MaxItems    *int
	UniqueItems bool
}

func (c Array) ForSchema() map[string]any {
	out := map[string]any{}
	putInt(out, "minItems", c.MinItems)
	putInt(out, "maxItems", c.MaxItems)
	if c.UniqueItems {
		out["uniqueItems"] = true
	}
	return out
}

// Mapping constrains mapping values.
type Mapping struct {
	MinProperties *int
	MaxProperties *int
}

func (c Mapping) ForSchema() map[string]any {
	out := map[string]any{}
	putInt(out, "minProperties", c.MinProperties)
	putInt(out, "maxProperties", c.MaxProperties)
	return out
}

func putFloat(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func putInt(m map[string]any, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}
