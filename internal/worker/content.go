package worker

import (
	"context"

	"web3mail/internal/encryption"
	"web3mail/internal/external"
	"web3mail/internal/types"
)

// fetchContent downloads the email body and decrypts it when the requester
// supplied a key. Without a key the stored content is used as is.
func fetchContent(ctx context.Context, store external.ContentStore, secret types.RequesterSecret) (string, error) {
	raw, err := store.Get(ctx, secret.EmailContentMultiAddr)
	if err != nil {
		return "", types.NewWorkflowError(types.ErrCodeWorkflowDownloadFailed, "Failed to download email content", err)
	}
	if secret.EmailContentEncryptionKey == "" {
		return string(raw), nil
	}
	plain, err := encryption.Decrypt(raw, secret.EmailContentEncryptionKey)
	if err != nil {
		return "", types.NewWorkflowError(types.ErrCodeWorkflowDecryptFailed, "Failed to decrypt email content", err)
	}
	return string(plain), nil
}
