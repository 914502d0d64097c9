// Package config loads the two configurations web3mail runs with: the worker's
// RawEnvironment, read once from the enclave environment, and the SDK's
// per-chain SDKConfig, resolved from embedded defaults plus caller overrides.
package config

import "fmt"

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrParsing indicates an environment value could not be converted.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates a loaded value failed validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrUnknownChain indicates no embedded defaults exist for the chain.
	ErrUnknownChain ConfigErrorType = "UNKNOWN_CHAIN"
)

// ConfigError is returned by the loaders in this package.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
