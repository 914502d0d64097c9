package marketplace

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// ComputeTaskID derives the task id of the index-th task of a deal:
// keccak256(dealid || uint256(index)).
func ComputeTaskID(dealID string, index uint64) (string, error) {
	raw, err := hexutil.Decode(dealID)
	if err != nil {
		return "", fmt.Errorf("invalid deal id %q: %w", dealID, err)
	}
	if len(raw) != common.HashLength {
		return "", fmt.Errorf("invalid deal id %q: expected %d bytes, got %d", dealID, common.HashLength, len(raw))
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(raw)
	h.Write(common.LeftPadBytes(new(big.Int).SetUint64(index).Bytes(), 32))
	return common.BytesToHash(h.Sum(nil)).Hex(), nil
}
