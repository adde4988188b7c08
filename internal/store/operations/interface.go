package operations

import (
	"context"
	"time"

	"github.com/fieldtrack/assetsync/internal/models"
)

// Repository describes the durable operation half of the record store.
// Operation payloads are encrypted before persistence and decrypted on
// every read; no code path persists a plaintext payload.
type Repository interface {
	// Create assigns id and creation time, encrypts the payload and writes
	// the operation atomically. Status and retry count start at their zero
	// lifecycle values (pending, 0).
	Create(ctx context.Context, op *models.Operation) (*models.Operation, error)

	// FindByID returns nil (not an error) when the operation is absent.
	FindByID(ctx context.Context, id string) (*models.Operation, error)

	// CountActive reports how many operations are still in flight
	// (pending, processing or retrying).
	CountActive(ctx context.Context) (int, error)

	// FindPending returns operations with status pending or retrying,
	// ordered by priority descending then creation time ascending, up to
	// limit.
	FindPending(ctx context.Context, limit int) ([]*models.Operation, error)

	// UpdateStatus moves an operation to the given status, optionally
	// incrementing its retry count in the same write.
	UpdateStatus(ctx context.Context, id string, status models.OperationStatus, incrementRetry bool) error

	// UpdatePriority recomputes the priority of a queued operation. It is a
	// no-op for operations already processing.
	UpdatePriority(ctx context.Context, id string, p models.Priority) error

	// DeleteCompletedOlderThan purges completed operations created before
	// cutoff and reports how many were removed. Pending and failed
	// operations are never purged.
	DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
