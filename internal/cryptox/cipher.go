// Package cryptox implements the device cipher service: a symmetric AES-GCM
// transform under a 256-bit key held behind platform secure storage.
//
// Failure semantics matter more than the transform itself: a record that
// cannot be decrypted surfaces common.ErrDecryptionFailed and is skipped by
// callers, never silently returned as garbage and never fatal to the
// process.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/keystore"
)

const (
	// DeviceKeyName is the secure-storage slot holding the device key.
	DeviceKeyName = "assetsync_device_key"

	keySize   = 32
	nonceSize = 12
)

// Cipher encrypts and decrypts opaque payloads under the device key.
type Cipher struct {
	store   keystore.Store
	keyName string
}

func NewCipher(store keystore.Store) *Cipher {
	return &Cipher{store: store, keyName: DeviceKeyName}
}

// GenerateKey produces a fresh random 256-bit key and persists it behind the
// secure-storage access policy. This is the only persistent side effect of
// the cipher service.
func (c *Cipher) GenerateKey(ctx context.Context) error {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := c.store.SetItem(ctx, c.keyName, key, keystore.DefaultKeyPolicy); err != nil {
		return fmt.Errorf("store key: %w", err)
	}
	return nil
}

// GetKey retrieves the stored device key. It fails with
// common.ErrKeyUnavailable when no key has been generated or secure storage
// denies access.
func (c *Cipher) GetKey(ctx context.Context) ([]byte, error) {
	key, err := c.store.GetItem(ctx, c.keyName)
	if err != nil {
		return nil, err
	}
	if len(key) != keySize {
		return nil, common.ErrKeyUnavailable
	}
	return key, nil
}

// Encrypt seals plaintext with AES-GCM under the device key using a fresh
// 12-byte nonce and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	key, err := c.GetKey(ctx)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Tampered input or data sealed under a different
// key fails with common.ErrDecryptionFailed.
func (c *Cipher) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	key, err := c.GetKey(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}
	if len(raw) < nonceSize {
		return nil, common.ErrDecryptionFailed
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}
	return plaintext, nil
}

// EncryptJSON serializes v to JSON and encrypts the serialization.
func (c *Cipher) EncryptJSON(ctx context.Context, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.Encrypt(ctx, plaintext)
}

// DecryptJSON decrypts ciphertext and unmarshals the plaintext into v.
func (c *Cipher) DecryptJSON(ctx context.Context, ciphertext string, v any) error {
	plaintext, err := c.Decrypt(ctx, ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return common.ErrDecryptionFailed
	}
	return nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
