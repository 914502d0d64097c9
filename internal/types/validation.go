package types

// Validation constraint constants.
const (
	// MaxEmailSubjectLength follows the RFC 5322 recommended line length.
	MaxEmailSubjectLength = 78
	// MinENSLength is the shortest accepted ENS name: a 3-character label plus ".eth".
	MinENSLength = 7

	DefaultMaxProtectedDataPerTask = 100
)
