// Package validation holds the input schemas shared by the SDK and the worker.
// It wraps go-playground/validator and registers the domain tags:
//
//	address         0x-prefixed 20-byte hex address (EIP-55 checked when mixed case)
//	address_or_ens  an address or an ENS name ending in .eth, checked lower-cased
//	content_type    text/plain or text/html
//	multiaddr       /ipfs/<cid> or /p2p/<cid>
package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"web3mail/internal/types"
)

var multiaddrPattern = regexp.MustCompile(`^/(ipfs|p2p)/[A-Za-z0-9]+(/.*)?$`)

// Validator validates SDK parameters and worker secrets against their schemas.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a Validator and registers the custom validation tags.
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		return IsAddress(fl.Field().String())
	})
	_ = v.RegisterValidation("address_or_ens", func(fl validator.FieldLevel) bool {
		s := strings.ToLower(fl.Field().String())
		return IsAddress(s) || IsENS(s)
	})
	_ = v.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		return types.ContentType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("multiaddr", func(fl validator.FieldLevel) bool {
		return multiaddrPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// Struct validates s and returns a validation AppError describing the first
// violation, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewValidationError(types.ErrCodeValidationInvalidInput, err.Error(), err)
	}

	fe := fieldErrs[0]
	v.logger.Debug("input rejected",
		"field", fe.Namespace(),
		"tag", fe.Tag(),
	)
	return types.NewValidationError(codeFor(fe), messageFor(fe), err)
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address. Mixed-case
// input must carry a valid EIP-55 checksum.
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(s).Hex() == s
}

// IsENS reports whether s looks like an ENS name with a label of at least
// three characters.
func IsENS(s string) bool {
	return strings.HasSuffix(s, ".eth") && len(s) >= types.MinENSLength
}

// NormalizeAddressOrENS trims and lower-cases an address or ENS name.
func NormalizeAddressOrENS(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsZeroAddress reports whether s is empty or the zero address.
func IsZeroAddress(s string) bool {
	if s == "" {
		return true
	}
	return IsAddress(s) && common.HexToAddress(s) == (common.Address{})
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func codeFor(fe validator.FieldError) types.ErrorCode {
	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return types.ErrCodeValidationMissingField
	case "address", "address_or_ens":
		return types.ErrCodeValidationInvalidAddress
	case "content_type":
		return types.ErrCodeValidationInvalidContentType
	case "excluded_with":
		return types.ErrCodeValidationConflictingFields
	}
	switch fe.Field() {
	case "emailSubject":
		return types.ErrCodeValidationInvalidSubject
	case "emailContent":
		return types.ErrCodeValidationInvalidContent
	case "senderName":
		return types.ErrCodeValidationInvalidSenderName
	case "dataMaxPrice", "appMaxPrice", "workerpoolMaxPrice":
		return types.ErrCodeValidationInvalidPrice
	}
	return types.ErrCodeValidationInvalidInput
}

func messageFor(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is a required field", field)
	case "address":
		return fmt.Sprintf("%s should be an ethereum address", field)
	case "address_or_ens":
		return fmt.Sprintf("%s should be an ethereum address or a ENS name", field)
	case "content_type":
		return fmt.Sprintf("%s should be one of text/plain, text/html", field)
	case "multiaddr":
		return fmt.Sprintf("%s should be a multiAddr (/ipfs/... or /p2p/...)", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s should be a valid email address", field)
	case "base64":
		return fmt.Sprintf("%s should be base64 encoded", field)
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}
