// Package common defines shared constants and sentinel errors used across
// the sync core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-layer errors.
	ErrNotFound = errors.New("not found")

	// Confidentiality-layer errors. Both are fatal for the record they
	// occurred on, never for the process: callers skip the record and log.
	ErrKeyUnavailable   = errors.New("encryption key unavailable")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Capture-layer errors, surfaced to the caller of Scan.
	ErrBusy             = errors.New("scan already in progress")
	ErrPermissionDenied = errors.New("hardware permission denied")
	ErrNoReading        = errors.New("no reading within timeout")

	// Queue-layer error: the queue holds its maximum number of in-flight
	// operations and rejects new work until some drain.
	ErrQueueFull = errors.New("operation queue full")

	// Conflict-layer error: neither version may be applied until a human
	// resolves the persisted conflict.
	ErrManualResolutionRequired = errors.New("manual resolution required")
)
