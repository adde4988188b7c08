package assets

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

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or
// *sql.Tx). Metadata is sealed through the cipher on every write.
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

func (r *SQLiteRepository) Create(ctx context.Context, a *models.Asset) (*models.Asset, error) {
	now := time.Now().UTC()

	created := *a
	created.ID = common.NewID()
	created.CreatedAt = now
	created.UpdatedAt = now
	created.SyncStatus = models.SyncStatusPending

	encData, err := r.sealMetadata(ctx, created.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt metadata: %w", err)
	}

	query := `INSERT INTO assets
			(id, name, type, status, location, last_scanned, created_at, updated_at, sync_status, encrypted_data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		created.ID, created.Name, created.Type, created.Status,
		nullString(created.Location), nullTime(created.LastScanned),
		created.CreatedAt.UnixNano(), created.UpdatedAt.UnixNano(),
		string(created.SyncStatus), encData)
	if err != nil {
		return nil, fmt.Errorf("failed to insert asset: %w", err)
	}
	return &created, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*models.Asset, error) {
	query := `SELECT id, name, type, status, location, last_scanned, created_at, updated_at, sync_status, encrypted_data
			FROM assets WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	a, err := r.scanAsset(ctx, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select asset: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, u Update) (*models.Asset, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, common.ErrNotFound
	}

	if u.Name != nil {
		current.Name = *u.Name
	}
	if u.Type != nil {
		current.Type = *u.Type
	}
	if u.Status != nil {
		current.Status = *u.Status
	}
	if u.Location != nil {
		current.Location = *u.Location
	}
	if u.LastScanned != nil {
		t := u.LastScanned.UTC()
		current.LastScanned = &t
	}
	if u.Metadata != nil {
		current.Metadata = u.Metadata
	}
	current.UpdatedAt = time.Now().UTC()
	current.SyncStatus = models.SyncStatusPending

	encData, err := r.sealMetadata(ctx, current.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt metadata: %w", err)
	}

	query := `UPDATE assets SET name=?, type=?, status=?, location=?, last_scanned=?,
			updated_at=?, sync_status=?, encrypted_data=? WHERE id=?`
	_, err = r.db.ExecContext(ctx, query,
		current.Name, current.Type, current.Status,
		nullString(current.Location), nullTime(current.LastScanned),
		current.UpdatedAt.UnixNano(), string(current.SyncStatus), encData, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	return current, nil
}

func (r *SQLiteRepository) MarkSyncStatus(ctx context.Context, id string, s models.SyncStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assets SET sync_status=? WHERE id=?`, string(s), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
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

func (r *SQLiteRepository) sealMetadata(ctx context.Context, md map[string]any) (any, error) {
	if md == nil {
		return nil, nil
	}
	ct, err := r.cipher.EncryptJSON(ctx, md)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanAsset(ctx context.Context, row rowScanner) (*models.Asset, error) {
	var (
		a           models.Asset
		location    sql.NullString
		lastScanned sql.NullInt64
		createdAt   int64
		updatedAt   int64
		syncStatus  string
		encData     sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &a.Status, &location, &lastScanned,
		&createdAt, &updatedAt, &syncStatus, &encData); err != nil {
		return nil, err
	}

	a.Location = location.String
	if lastScanned.Valid {
		t := time.Unix(0, lastScanned.Int64).UTC()
		a.LastScanned = &t
	}
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	a.UpdatedAt = time.Unix(0, updatedAt).UTC()
	a.SyncStatus = models.SyncStatus(syncStatus)

	if encData.Valid && encData.String != "" {
		var md map[string]any
		if err := r.cipher.DecryptJSON(ctx, encData.String, &md); err != nil {
			// Fatal for the record, not for the caller: the asset is
			// returned without its metadata.
			r.log.Warn(ctx, "skipping undecryptable asset metadata", "asset_id", a.ID, "error", err)
		} else {
			a.Metadata = md
		}
	}
	return &a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
