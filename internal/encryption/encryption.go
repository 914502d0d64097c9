// Package encryption implements the symmetric content encryption shared by the
// SDK (encrypt before upload) and the worker (decrypt after download).
//
// Ciphertext layout: a 16-byte random IV followed by AES-256-CBC blocks of the
// PKCS#7-padded plaintext. Keys travel base64-encoded.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ChunkSize is the amount of ciphertext decrypted per CryptBlocks call. It is a
// multiple of the AES block size so CBC chaining carries across chunks.
const ChunkSize = 10 * 1024 * 1024

var (
	ErrInvalidKey         = errors.New("encryption key must be 32 bytes base64 encoded")
	ErrCiphertextTooShort = errors.New("ciphertext is shorter than the IV")
	ErrCiphertextNotBlock = errors.New("ciphertext is not a multiple of the block size")
)

// GenerateKey returns a fresh random AES-256 key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt encrypts plaintext with the base64 key and prefixes a random IV.
func Encrypt(plaintext []byte, key string) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	padded := addPadding(plaintext)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt reverses Encrypt. The body is processed in ChunkSize slices and the
// padding is stripped with RemovePadding.
func Decrypt(ciphertext []byte, key string) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, ErrCiphertextTooShort
	}

	iv, body := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	if len(body)%aes.BlockSize != 0 {
		return nil, ErrCiphertextNotBlock
	}

	mode := cipher.NewCBCDecrypter(block, iv)
	out := make([]byte, len(body))
	for off := 0; off < len(body); off += ChunkSize {
		end := min(off+ChunkSize, len(body))
		mode.CryptBlocks(out[off:end], body[off:end])
	}

	return RemovePadding(out), nil
}

// RemovePadding strips trailing PKCS#7 padding. A buffer whose tail is not a
// valid padding pattern is returned unchanged.
func RemovePadding(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return b
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return b
		}
	}
	return b[:len(b)-n]
}

func addPadding(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func newCipher(key string) (cipher.Block, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != KeySize {
		return nil, ErrInvalidKey
	}
	return aes.NewCipher(raw)
}
