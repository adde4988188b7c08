package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/cryptox"
	"github.com/fieldtrack/assetsync/internal/dbx"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
)

// SQLiteRepository implements Repository over a DBTX.
type SQLiteRepository struct {
	db     dbx.DBTX
	cipher *cryptox.Cipher
	log    logging.Logger
}

func NewSQLiteRepository(db dbx.DBTX, cipher *cryptox.Cipher, log logging.Logger) *SQLiteRepository {
	if log == nil {
		log = logging.Nop()
	}
	return &SQLiteRepository{db: db, cipher: cipher, log: log}
}

func (r *SQLiteRepository) Create(ctx context.Context, op *models.Operation) (*models.Operation, error) {
	created := *op
	created.ID = common.NewID()
	created.CreatedAt = time.Now().UTC()
	created.Status = models.OperationStatusPending
	created.RetryCount = 0

	var data any
	if created.Payload != nil {
		ct, err := r.cipher.EncryptJSON(ctx, created.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}
		data = ct
	}

	query := `INSERT INTO operations (id, type, asset_id, data, status, priority, created_at, retry_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		created.ID, string(created.Type), nullString(created.AssetID), data,
		string(created.Status), int(created.Priority), created.CreatedAt.UnixNano(), created.RetryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to insert operation: %w", err)
	}
	return &created, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Operation, error) {
	query := `SELECT id, type, asset_id, data, status, priority, created_at, retry_count
			FROM operations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	op, err := r.scanOperation(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select operation: %w", err)
	}
	return op, nil
}

func (r *SQLiteRepository) CountActive(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM operations WHERE status IN (?, ?, ?)`
	var n int
	err := r.db.QueryRowContext(ctx, query,
		string(models.OperationStatusPending),
		string(models.OperationStatusProcessing),
		string(models.OperationStatusRetrying)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active operations: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) FindPending(ctx context.Context, limit int) ([]*models.Operation, error) {
	query := `SELECT id, type, asset_id, data, status, priority, created_at, retry_count
			FROM operations
			WHERE status IN (?, ?)
			ORDER BY priority DESC, created_at ASC
			LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query,
		string(models.OperationStatusPending), string(models.OperationStatusRetrying), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending operations: %w", err)
	}
	defer rows.Close()

	var result []*models.Operation
	for rows.Next() {
		op, err := r.scanOperation(ctx, rows)
		if err != nil {
			return nil, err
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status models.OperationStatus, incrementRetry bool) error {
	query := `UPDATE operations SET status=? WHERE id=?`
	if incrementRetry {
		query = `UPDATE operations SET status=?, retry_count=retry_count+1 WHERE id=?`
	}
	res, err := r.db.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdatePriority(ctx context.Context, id string, p models.Priority) error {
	// Operations already processing keep their priority: the sync manager
	// holds them under lease.
	query := `UPDATE operations SET priority=? WHERE id=? AND status != ?`
	_, err := r.db.ExecContext(ctx, query, int(p), id, string(models.OperationStatusProcessing))
	if err != nil {
		return fmt.Errorf("failed to update operation priority: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteCompletedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM operations WHERE status=? AND created_at < ?`
	res, err := r.db.ExecContext(ctx, query, string(models.OperationStatusCompleted), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete completed operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanOperation(ctx context.Context, row rowScanner) (*models.Operation, error) {
	var (
		op        models.Operation
		opType    string
		assetID   sql.NullString
		data      sql.NullString
		status    string
		priority  int
		createdAt int64
	)
	if err := row.Scan(&op.ID, &opType, &assetID, &data, &status, &priority, &createdAt, &op.RetryCount); err != nil {
		return nil, err
	}

	op.Type = models.OperationType(opType)
	op.AssetID = assetID.String
	op.Status = models.OperationStatus(status)
	op.Priority = models.Priority(priority)
	op.CreatedAt = time.Unix(0, createdAt).UTC()

	if data.Valid && data.String != "" {
		var payload map[string]any
		if err := r.cipher.DecryptJSON(ctx, data.String, &payload); err != nil {
			// The operation stays in the queue; its payload is simply
			// unreadable on this read.
			r.log.Warn(ctx, "skipping undecryptable operation payload", "operation_id", op.ID, "error", err)
		} else {
			op.Payload = payload
		}
	}
	return &op, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
