// Package keystore abstracts the platform secure storage that guards the
// device encryption key.
//
// The production implementation is expected to sit on a platform secure
// enclave (keychain/keystore) gated by unlock and biometric policy; this
// package ships a deterministic in-memory store for tests and a
// passphrase-protected file store for environments without an enclave.
package keystore

import "context"

// Policy describes the access conditions a stored item must be gated by.
type Policy struct {
	// RequireUnlocked demands the device has been unlocked at least once
	// since boot before the item is readable.
	RequireUnlocked bool

	// RequireBiometric demands biometric authentication where the platform
	// supports it.
	RequireBiometric bool
}

// DefaultKeyPolicy is the policy applied to the device encryption key.
var DefaultKeyPolicy = Policy{RequireUnlocked: true, RequireBiometric: true}

// Store is a key-value capability over platform secure storage.
//
// GetItem returns common.ErrKeyUnavailable when the item does not exist or
// the platform denies access (failed biometric check, cleared storage).
type Store interface {
	SetItem(ctx context.Context, key string, value []byte, policy Policy) error
	GetItem(ctx context.Context, key string) ([]byte, error)
}
