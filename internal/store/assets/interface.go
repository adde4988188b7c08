package assets

import (
	"context"
	"time"

	"github.com/fieldtrack/assetsync/internal/models"
)

// Update carries the partial fields of an asset update. Nil pointers leave
// the corresponding column untouched; a non-nil Metadata replaces the stored
// (encrypted) metadata wholesale.
type Update struct {
	Name        *string
	Type        *string
	Status      *string
	Location    *string
	LastScanned *time.Time
	Metadata    map[string]any
}

// Repository describes the durable asset half of the record store.
// Implementations encrypt metadata before persistence and decrypt it on
// read; the plaintext serialization never reaches disk.
type Repository interface {
	// Create assigns id and timestamps, sets sync status to pending and
	// writes the asset atomically.
	Create(ctx context.Context, a *models.Asset) (*models.Asset, error)

	// FindByID returns nil (not an error) when the asset is absent. A record
	// whose metadata cannot be decrypted is returned without metadata and
	// logged, never dropped.
	FindByID(ctx context.Context, id string) (*models.Asset, error)

	// Update merges partial fields, bumps updated_at and writes atomically.
	// It fails with common.ErrNotFound when the asset does not exist.
	Update(ctx context.Context, id string, u Update) (*models.Asset, error)

	// MarkSyncStatus records the outcome of a sync attempt for the asset.
	MarkSyncStatus(ctx context.Context, id string, s models.SyncStatus) error
}
