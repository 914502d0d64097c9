package web3mail

import (
	"web3mail/internal/marketplace"
	"web3mail/internal/types"
)

// AppError is the error type returned by every Client operation. Use
// IsProtocolError to tell marketplace outages apart from other failures.
type AppError = types.AppError

// classify is applied at the outermost level of each operation. Protocol
// errors and validation errors pass through; a marketplace CallError anywhere
// in the chain becomes a protocol error; anything else is wrapped in a
// workflow error carrying message.
func classify(err error, code types.ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if pe := types.AsProtocolError(err); pe != nil {
		return pe
	}
	if marketplace.IsCallError(err) {
		return types.NewProtocolError(err)
	}
	if types.IsValidationError(err) {
		return err
	}
	return types.NewWorkflowError(code, message, err)
}
