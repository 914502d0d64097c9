package worker

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"web3mail/internal/types"
	"web3mail/internal/validation"
)

// emailEntry is the archive entry holding the protected email value.
const emailEntry = "email"

// maxEntryBytes bounds the size of a decompressed protected data field.
const maxEntryBytes = 1 << 20

var errNoEmailEntry = errors.New(`protected data has no "email" field`)

// loadProtectedEmail reads the email field of the protected data archive at
// path and checks that it is a well-formed address.
func loadProtectedEmail(path string, v *validation.Validator) (string, error) {
	if path == "" {
		return "", types.NewWorkflowError(types.ErrCodeWorkflowProtectedData,
			"Failed to load protected data", errors.New("no dataset file for this task"))
	}

	value, err := readEntry(path, emailEntry)
	if err != nil {
		return "", types.NewWorkflowError(types.ErrCodeWorkflowProtectedData, "Failed to load protected data", err)
	}

	pd := types.ProtectedEmail{Email: strings.TrimSpace(value)}
	if err := v.Struct(pd); err != nil {
		return "", types.NewWorkflowError(types.ErrCodeWorkflowProtectedData, "ProtectedData is not valid", err)
	}
	return pd.Email, nil
}

func readEntry(path, name string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open protected data: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return string(b), nil
	}
	return "", errNoEmailEntry
}
