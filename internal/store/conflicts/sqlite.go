package conflicts

import (
	"context"
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

func (r *SQLiteRepository) Save(ctx context.Context, c *models.Conflict) (*StoredConflict, error) {
	assetID := ""
	if c.LocalVersion != nil {
		assetID = c.LocalVersion.ID
	} else if c.RemoteVersion != nil {
		assetID = c.RemoteVersion.ID
	}

	ct, err := r.cipher.EncryptJSON(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt conflict: %w", err)
	}

	stored := &StoredConflict{
		ID:        common.NewID(),
		AssetID:   assetID,
		Conflict:  c,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
	}

	query := `INSERT INTO conflicts (id, asset_id, conflict_data, created_at, status)
			VALUES (?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		stored.ID, stored.AssetID, ct, stored.CreatedAt.UnixNano(), stored.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conflict: %w", err)
	}
	return stored, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*StoredConflict, error) {
	query := `SELECT id, asset_id, conflict_data, created_at, status
			FROM conflicts WHERE status=? ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to select conflicts: %w", err)
	}
	defer rows.Close()

	var result []*StoredConflict
	for rows.Next() {
		var (
			stored    StoredConflict
			data      string
			createdAt int64
		)
		if err := rows.Scan(&stored.ID, &stored.AssetID, &data, &createdAt, &stored.Status); err != nil {
			return nil, err
		}
		stored.CreatedAt = time.Unix(0, createdAt).UTC()

		var c models.Conflict
		if err := r.cipher.DecryptJSON(ctx, data, &c); err != nil {
			r.log.Warn(ctx, "skipping undecryptable conflict", "conflict_id", stored.ID, "error", err)
			continue
		}
		stored.Conflict = &c
		result = append(result, &stored)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkResolved(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conflicts SET status=? WHERE id=?`, StatusResolved, id)
	if err != nil {
		return fmt.Errorf("failed to update conflict status: %w", err)
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
