package types

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds provider API keys and encryption keys. It redacts itself
// when formatted or marshaled so that developer secrets never reach logs or
// result files. Unmarshaling is unaffected, so secrets decode from JSON as
// plain strings.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Only HTTP clients
// building Authorization headers should call it.
func (s SecretString) Unmask() string {
	return string(s)
}
