package models

import "time"

// OperationType classifies a queued unit of intended change.
type OperationType string

const (
	OperationCreate   OperationType = "create"
	OperationUpdate   OperationType = "update"
	OperationDelete   OperationType = "delete"
	OperationTransfer OperationType = "transfer"
	OperationScan     OperationType = "scan"
)

// OperationStatus is the queue lifecycle state of an operation.
type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusProcessing OperationStatus = "processing"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
	OperationStatusRetrying   OperationStatus = "retrying"
)

// Priority orders operations in the queue. Higher values drain first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// DefaultPriority returns the queue priority assigned to an operation type
// when the caller does not supply an explicit override.
func DefaultPriority(t OperationType) Priority {
	switch t {
	case OperationTransfer, OperationScan:
		return PriorityHigh
	case OperationUpdate:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Operation is a durable unit of intended change against zero or one asset,
// awaiting confirmation by the remote authority.
//
// Payload is the in-memory, decrypted form of the operation's data; the
// record store persists only its ciphertext.
type Operation struct {
	// ID is a globally unique identifier.
	ID string

	// Type determines how the sync manager dispatches the operation.
	Type OperationType

	// AssetID references the affected asset, empty for asset-less operations.
	AssetID string

	// Payload carries the operation's data. Encrypted at rest.
	Payload map[string]any

	// Status advances pending -> processing -> completed/retrying/failed,
	// driven exclusively by the sync manager.
	Status OperationStatus

	// Priority orders the queue; see DefaultPriority.
	Priority Priority

	// CreatedAt is the enqueue time in UTC.
	CreatedAt time.Time

	// RetryCount only ever increases, up to the configured ceiling.
	RetryCount int
}
