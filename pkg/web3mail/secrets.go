package web3mail

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"web3mail/internal/encryption"
	"web3mail/internal/types"
)

// maxSecretSlot keeps slot ids within the integer range every marketplace
// client can represent exactly.
var maxSecretSlot = big.NewInt(1 << 53)

// secretSlots returns n distinct random positive slot ids.
func secretSlots(n int) ([]uint64, error) {
	slots := make([]uint64, 0, n)
	seen := make(map[uint64]bool, n)
	for len(slots) < n {
		v, err := rand.Int(rand.Reader, maxSecretSlot)
		if err != nil {
			return nil, fmt.Errorf("generate secret slot: %w", err)
		}
		slot := v.Uint64() + 1
		if seen[slot] {
			continue
		}
		seen[slot] = true
		slots = append(slots, slot)
	}
	return slots, nil
}

type emailContent struct {
	subject     string
	body        string
	contentType types.ContentType
	senderName  string
}

// uploadContent encrypts the body with a fresh key, stores it and returns the
// secret bundle the worker needs to read it.
func (c *Client) uploadContent(ctx context.Context, content emailContent) (types.RequesterSecret, error) {
	key, err := encryption.GenerateKey()
	if err != nil {
		return types.RequesterSecret{}, err
	}
	ciphertext, err := encryption.Encrypt([]byte(content.body), key)
	if err != nil {
		return types.RequesterSecret{}, err
	}
	multiaddr, err := c.storage.Upload(ctx, ciphertext)
	if err != nil {
		return types.RequesterSecret{}, err
	}

	contentType := content.contentType
	if contentType == "" {
		contentType = types.ContentTypeHTML
	}
	return types.RequesterSecret{
		EmailSubject:              content.subject,
		EmailContentMultiAddr:     multiaddr,
		ContentType:               contentType,
		SenderName:                content.senderName,
		EmailContentEncryptionKey: key,
		UseCallback:               c.cfg.CallbackContract != "",
	}, nil
}

// requestParams is the params document of a web3mail request order.
type requestParams struct {
	Secrets         map[string]uint64 `json:"iexec_secrets"`
	DeveloperLogger bool              `json:"iexec_developer_logger"`
	Args            string            `json:"iexec_args,omitempty"`
}

func marshalRequestParams(secretSlots map[string]uint64, label string) (string, error) {
	b, err := json.Marshal(requestParams{
		Secrets:         secretSlots,
		DeveloperLogger: true,
		Args:            label,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
