package serde

// Secret wraps a sensitive string. Its String method and %v formatting keep
// the contents hidden; serialization reveals the underlying text through
// the defined-conversion table, since serialized output is the deliberate
// egress point for the value.
type Secret struct {
	value string
}

// NewSecret wraps s.
func NewSecret(s string) Secret {
	return Secret{value: s}
}

// Reveal returns the underlying text.
func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) String() string {
	return "******"
}

// SecretBytes wraps sensitive bytes. Serialization reveals the decoded text.
type SecretBytes struct {
	value []byte
}

// NewSecretBytes wraps b.
func NewSecretBytes(b []byte) SecretBytes {
	return SecretBytes{value: b}
}

// Reveal returns the underlying bytes.
func (s SecretBytes) Reveal() []byte {
	return s.value
}

func (s SecretBytes) String() string {
	return "******"
}
