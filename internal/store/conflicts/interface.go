package conflicts

import (
	"context"
	"time"

	"github.com/fieldtrack/assetsync/internal/models"
)

// Resolution states of a stored conflict.
const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
)

// StoredConflict is a conflict persisted to the manual-resolution holding
// area. The conflict body is encrypted at rest.
type StoredConflict struct {
	ID        string
	AssetID   string
	Conflict  *models.Conflict
	CreatedAt time.Time
	Status    string
}

// Repository is the encrypted holding area for conflicts that require
// human resolution.
type Repository interface {
	// Save encrypts and persists the conflict with status pending.
	Save(ctx context.Context, c *models.Conflict) (*StoredConflict, error)

	// ListPending returns conflicts awaiting resolution. Records whose body
	// cannot be decrypted are skipped and logged.
	ListPending(ctx context.Context) ([]*StoredConflict, error)

	// MarkResolved closes a stored conflict after a human decided.
	MarkResolved(ctx context.Context, id string) error
}
