package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"web3mail/internal/types"
)

const (
	resultFile   = "result.json"
	computedFile = "computed.json"
)

// Callback payload bits, packed into the last byte of a 32-byte word.
const (
	callbackBitValid     byte = 1 << 0
	callbackBitPerformed byte = 1 << 1
)

// emailCheck records what the pipeline learned about the recipient address.
type emailCheck struct {
	valid     bool
	performed bool
}

// encodeCallback renders v as "0x" followed by 64 hex characters.
func encodeCallback(v emailCheck) string {
	var b byte
	if v.valid {
		b |= callbackBitValid
	}
	if v.performed {
		b |= callbackBitPerformed
	}
	return hexutil.Encode(common.LeftPadBytes([]byte{b}, 32))
}

// writeOutputs writes the result document and computed.json into dir. An
// empty callback is left out of computed.json.
func writeOutputs(dir string, result any, callback string) (string, error) {
	resultPath := filepath.Join(dir, resultFile)
	doc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	if err := writeFile(resultPath, doc); err != nil {
		return "", err
	}

	computed, err := json.MarshalIndent(types.ComputedDescriptor{
		DeterministicOutputPath: resultPath,
		CallbackData:            callback,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal computed: %w", err)
	}
	if err := writeFile(filepath.Join(dir, computedFile), computed); err != nil {
		return "", err
	}
	return resultPath, nil
}

func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}
