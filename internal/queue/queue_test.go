package queue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/cryptox"
	"github.com/fieldtrack/assetsync/internal/keystore"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/store/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupQueue(t *testing.T, opts ...Option) (*Queue, operations.Repository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE operations (
  id          TEXT PRIMARY KEY,
  type        TEXT NOT NULL,
  asset_id    TEXT,
  data        TEXT,
  status      TEXT NOT NULL DEFAULT 'pending',
  priority    INTEGER NOT NULL DEFAULT 1,
  created_at  INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	cipher := cryptox.NewCipher(keystore.NewMemory())
	require.NoError(t, cipher.GenerateKey(context.Background()))

	repo := operations.NewSQLiteRepository(db, cipher, nil)
	return New(repo, nil, opts...), repo, db
}

func TestEnqueue_DefaultPriorityMapping(t *testing.T) {
	q, _, _ := setupQueue(t)
	ctx := context.Background()

	tests := []struct {
		typ  models.OperationType
		want models.Priority
	}{
		{models.OperationTransfer, models.PriorityHigh},
		{models.OperationScan, models.PriorityHigh},
		{models.OperationUpdate, models.PriorityMedium},
		{models.OperationCreate, models.PriorityLow},
		{models.OperationDelete, models.PriorityLow},
	}

	for _, tc := range tests {
		op, err := q.Enqueue(ctx, tc.typ, "", nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, op.Priority, "type %s", tc.typ)
	}
}

func TestEnqueue_ExplicitPriorityOverride(t *testing.T) {
	q, _, _ := setupQueue(t)

	op, err := q.Enqueue(context.Background(), models.OperationCreate, "", nil, WithPriority(models.PriorityHigh))
	require.NoError(t, err)
	assert.Equal(t, models.PriorityHigh, op.Priority)
}

func TestEnqueue_RejectsWhenFull(t *testing.T) {
	q, _, _ := setupQueue(t, WithMaxSize(2))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, models.OperationCreate, "", nil)
	assert.ErrorIs(t, err, common.ErrQueueFull)

	// Draining an operation frees capacity again.
	batch, err := q.NextBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, q.MarkCompleted(ctx, batch[0].ID))

	_, err = q.Enqueue(ctx, models.OperationCreate, "", nil)
	assert.NoError(t, err)
}

func TestNextBatch_CreateOrderedAfterEarlierScan(t *testing.T) {
	q, _, db := setupQueue(t)
	ctx := context.Background()

	scan, err := q.Enqueue(ctx, models.OperationScan, "a1", nil)
	require.NoError(t, err)
	create, err := q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)

	// Make the scan strictly older so tier ordering is also exercised.
	_, err = db.Exec(`UPDATE operations SET created_at=created_at-1000000 WHERE id=?`, scan.ID)
	require.NoError(t, err)

	batch, err := q.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, scan.ID, batch[0].ID, "high-priority scan drains first")
	assert.Equal(t, create.ID, batch[1].ID)
}

func TestMarkFailed_RetryCeilingBoundary(t *testing.T) {
	q, repo, _ := setupQueue(t)
	ctx := context.Background()

	op, err := q.Enqueue(ctx, models.OperationUpdate, "a1", nil)
	require.NoError(t, err)

	// Walk the operation to one below the ceiling.
	require.NoError(t, repo.UpdateStatus(ctx, op.ID, models.OperationStatusRetrying, true))
	require.NoError(t, repo.UpdateStatus(ctx, op.ID, models.OperationStatusRetrying, true))

	got, err := repo.FindByID(ctx, op.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.RetryCount)

	// One below the ceiling: increments and retries.
	status, err := q.MarkFailed(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusRetrying, status)

	got, err = repo.FindByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount)

	// At the ceiling: terminal failure, count unchanged.
	status, err = q.MarkFailed(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusFailed, status)

	got, err = repo.FindByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount, "no increment past the ceiling")
	assert.Equal(t, models.OperationStatusFailed, got.Status)
}

func TestMarkFailed_RetryCountMonotonic(t *testing.T) {
	q, repo, _ := setupQueue(t)
	ctx := context.Background()

	op, err := q.Enqueue(ctx, models.OperationScan, "a1", nil)
	require.NoError(t, err)

	last := 0
	for i := 0; i < 6; i++ {
		_, err := q.MarkFailed(ctx, op.ID)
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, op.ID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.RetryCount, last, "retry count must never decrease")
		require.LessOrEqual(t, got.RetryCount, q.MaxRetries())
		if got.RetryCount == q.MaxRetries() {
			require.Contains(t,
				[]models.OperationStatus{models.OperationStatusRetrying, models.OperationStatusFailed},
				got.Status)
		}
		last = got.RetryCount
	}

	got, err := repo.FindByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OperationStatusFailed, got.Status)
}

func TestCleanup_PurgesOnlyAgedCompleted(t *testing.T) {
	q, repo, db := setupQueue(t)
	ctx := context.Background()

	done, err := q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)
	failed, err := q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)
	pending, err := q.Enqueue(ctx, models.OperationCreate, "", nil)
	require.NoError(t, err)

	require.NoError(t, q.MarkCompleted(ctx, done.ID))
	require.NoError(t, repo.UpdateStatus(ctx, failed.ID, models.OperationStatusFailed, false))

	old := time.Now().UTC().Add(-8 * 24 * time.Hour).UnixNano()
	for _, id := range []string{done.ID, failed.ID, pending.ID} {
		_, err := db.Exec(`UPDATE operations SET created_at=? WHERE id=?`, old, id)
		require.NoError(t, err)
	}

	n, err := q.Cleanup(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	remaining, err := repo.FindByID(ctx, failed.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining, "failed operations are never purged")

	remaining, err = repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining, "pending operations are never purged")
}

func TestReprioritize_EscalatesByRule(t *testing.T) {
	q, repo, _ := setupQueue(t)
	ctx := context.Background()

	urgent, err := q.Enqueue(ctx, models.OperationScan, "a1",
		map[string]any{"urgent": true}, WithPriority(models.PriorityLow))
	require.NoError(t, err)
	security, err := q.Enqueue(ctx, models.OperationUpdate, "a2",
		map[string]any{"securityRelated": true})
	require.NoError(t, err)
	plain, err := q.Enqueue(ctx, models.OperationUpdate, "a3", nil)
	require.NoError(t, err)

	changed, err := q.Reprioritize(ctx, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	for _, tc := range []struct {
		id   string
		want models.Priority
	}{
		{urgent.ID, models.PriorityHigh},
		{security.ID, models.PriorityHigh},
		{plain.ID, models.PriorityMedium},
	} {
		got, err := repo.FindByID(ctx, tc.id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Priority)
	}
}

func TestReprioritize_NeverTouchesProcessing(t *testing.T) {
	q, repo, _ := setupQueue(t)
	ctx := context.Background()

	op, err := q.Enqueue(ctx, models.OperationScan, "a1",
		map[string]any{"urgent": true}, WithPriority(models.PriorityLow))
	require.NoError(t, err)
	require.NoError(t, q.MarkProcessing(ctx, op.ID))

	changed, err := q.Reprioritize(ctx, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	got, err := repo.FindByID(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityLow, got.Priority)
}
