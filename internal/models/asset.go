// Package models defines the data types shared by the sync core: assets,
// queued operations, conflicts and scan results.
package models

import "time"

// SyncStatus tracks whether a locally held asset has been confirmed by the
// remote authority.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Asset is a tracked physical item.
//
// Metadata is the in-memory, decrypted form of the record's structured data.
// The record store encrypts it before persistence; the plaintext
// serialization never reaches disk.
type Asset struct {
	// ID is a globally unique identifier, locally generated at creation.
	ID string

	// Name is the human-readable label.
	Name string

	// Type categorizes the asset (free-form, application-defined).
	Type string

	// Status is a free-form status string.
	Status string

	// Location is the last known location, empty when unknown.
	Location string

	// LastScanned is the time of the most recent physical scan, nil if never.
	LastScanned *time.Time

	// Metadata holds arbitrary structured data. Encrypted at rest.
	Metadata map[string]any

	// CreatedAt and UpdatedAt are maintained by the record store, in UTC.
	CreatedAt time.Time
	UpdatedAt time.Time

	// SyncStatus reflects the asset's standing with the remote authority.
	SyncStatus SyncStatus
}
