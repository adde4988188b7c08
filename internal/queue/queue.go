// Package queue enforces queueing semantics over the operations half of the
// record store: priority assignment, retry accounting up to a fixed ceiling,
// completed-operation retention and rule-driven reprioritization.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/store/operations"
)

const (
	// DefaultMaxRetries is the retry ceiling: an operation whose retry count
	// has reached it transitions to terminal failed on the next failure.
	DefaultMaxRetries = 3

	// DefaultRetention is how long completed operations are kept before
	// cleanup purges them.
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultMaxSize caps the number of in-flight operations; Enqueue
	// rejects new work with common.ErrQueueFull beyond it.
	DefaultMaxSize = 1000
)

// Queue is the single source of truth for work not yet confirmed by the
// remote authority.
type Queue struct {
	ops        operations.Repository
	log        logging.Logger
	maxRetries int
	maxSize    int
	retention  time.Duration
}

type Option func(*Queue)

func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

func WithMaxSize(n int) Option {
	return func(q *Queue) { q.maxSize = n }
}

func WithRetention(d time.Duration) Option {
	return func(q *Queue) { q.retention = d }
}

func New(ops operations.Repository, log logging.Logger, opts ...Option) *Queue {
	if log == nil {
		log = logging.Nop()
	}
	q := &Queue{
		ops:        ops,
		log:        log,
		maxRetries: DefaultMaxRetries,
		maxSize:    DefaultMaxSize,
		retention:  DefaultRetention,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WithRepository returns a copy of the queue bound to ops, keeping the
// configured limits. Used to run queue writes inside a transaction.
func (q *Queue) WithRepository(ops operations.Repository) *Queue {
	clone := *q
	clone.ops = ops
	return &clone
}

type enqueueConfig struct {
	priority    models.Priority
	hasPriority bool
}

type EnqueueOption func(*enqueueConfig)

// WithPriority overrides the default priority mapping for the operation.
func WithPriority(p models.Priority) EnqueueOption {
	return func(c *enqueueConfig) {
		c.priority = p
		c.hasPriority = true
	}
}

// Enqueue creates a new pending operation. Unless overridden, priority
// follows the fixed type mapping: transfer and scan are high, update is
// medium, create and delete are low. When the queue already holds maxSize
// in-flight operations the call fails with common.ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, typ models.OperationType, assetID string, payload map[string]any, opts ...EnqueueOption) (*models.Operation, error) {
	var cfg enqueueConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if q.maxSize > 0 {
		active, err := q.ops.CountActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count queued operations: %w", err)
		}
		if active >= q.maxSize {
			q.log.Warn(ctx, "operation rejected, queue full", "type", typ, "active", active)
			return nil, common.ErrQueueFull
		}
	}

	priority := models.DefaultPriority(typ)
	if cfg.hasPriority {
		priority = cfg.priority
	}

	op, err := q.ops.Create(ctx, &models.Operation{
		Type:     typ,
		AssetID:  assetID,
		Payload:  payload,
		Priority: priority,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	q.log.Debug(ctx, "operation enqueued", "operation_id", op.ID, "type", typ, "priority", priority)
	return op, nil
}

// NextBatch returns up to size operations ready for dispatch: status pending
// or retrying, highest priority first, oldest first within a tier.
func (q *Queue) NextBatch(ctx context.Context, size int) ([]*models.Operation, error) {
	return q.ops.FindPending(ctx, size)
}

// MarkProcessing takes the lease on an operation.
func (q *Queue) MarkProcessing(ctx context.Context, id string) error {
	return q.ops.UpdateStatus(ctx, id, models.OperationStatusProcessing, false)
}

// MarkCompleted moves an operation to its terminal success state.
func (q *Queue) MarkCompleted(ctx context.Context, id string) error {
	return q.ops.UpdateStatus(ctx, id, models.OperationStatusCompleted, false)
}

// MarkFailed records a dispatch failure. Below the retry ceiling the
// operation goes back to retrying with its retry count incremented; at or
// above the ceiling it transitions to terminal failed with the count left
// unchanged.
func (q *Queue) MarkFailed(ctx context.Context, id string) (models.OperationStatus, error) {
	op, err := q.ops.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if op == nil {
		return "", common.ErrNotFound
	}

	if op.RetryCount >= q.maxRetries {
		if err := q.ops.UpdateStatus(ctx, id, models.OperationStatusFailed, false); err != nil {
			return "", err
		}
		q.log.Warn(ctx, "operation permanently failed", "operation_id", id, "retry_count", op.RetryCount)
		return models.OperationStatusFailed, nil
	}

	if err := q.ops.UpdateStatus(ctx, id, models.OperationStatusRetrying, true); err != nil {
		return "", err
	}
	q.log.Debug(ctx, "operation scheduled for retry", "operation_id", id, "retry_count", op.RetryCount+1)
	return models.OperationStatusRetrying, nil
}

// Cleanup purges completed operations older than the cutoff. A zero cutoff
// means now minus the retention window. Failed and pending operations are
// never purged.
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	if olderThan.IsZero() {
		olderThan = time.Now().UTC().Add(-q.retention)
	}
	n, err := q.ops.DeleteCompletedOlderThan(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up operations: %w", err)
	}
	if n > 0 {
		q.log.Debug(ctx, "purged completed operations", "count", n)
	}
	return n, nil
}

// MaxRetries reports the configured retry ceiling.
func (q *Queue) MaxRetries() int { return q.maxRetries }
