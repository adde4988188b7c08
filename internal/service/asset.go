// Package service is the facade the application talks to: every local write
// goes through the record store and leaves a matching operation in the queue,
// so the device stays consistent offline and the sync manager has a complete
// replay log.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/queue"
	"github.com/fieldtrack/assetsync/internal/store"
	"github.com/fieldtrack/assetsync/internal/store/assets"
)

type AssetService interface {
	// CreateAsset persists a new asset and enqueues a create operation.
	CreateAsset(ctx context.Context, a *models.Asset) (*models.Asset, error)

	// GetAsset returns the asset or common.ErrNotFound.
	GetAsset(ctx context.Context, id string) (*models.Asset, error)

	// UpdateAsset applies a partial update and enqueues an update operation.
	UpdateAsset(ctx context.Context, id string, u assets.Update) (*models.Asset, error)

	// RecordScan validates a capture result against the stored asset, bumps
	// its last-scanned time and enqueues a scan operation.
	RecordScan(ctx context.Context, scan *models.ScanResult) (*models.Asset, error)

	// TransferAsset enqueues a custody transfer for the asset.
	TransferAsset(ctx context.Context, id, fromCustodian, toCustodian string) (*models.Operation, error)

	// DeleteAsset enqueues a delete operation for the asset.
	DeleteAsset(ctx context.Context, id string) (*models.Operation, error)
}

type assetService struct {
	repos *store.Repositories
	queue *queue.Queue
	log   logging.Logger
}

// NewAssetService wires the facade. Writes that touch both an asset and the
// queue run inside one transaction via repos.WithTx, so an asset never
// persists without its replay operation.
func NewAssetService(repos *store.Repositories, q *queue.Queue, log logging.Logger) AssetService {
	if log == nil {
		log = logging.Nop()
	}
	return &assetService{repos: repos, queue: q, log: log}
}

func (s *assetService) CreateAsset(ctx context.Context, a *models.Asset) (*models.Asset, error) {
	if a == nil || a.Name == "" {
		return nil, fmt.Errorf("asset name is required")
	}

	var created *models.Asset
	err := s.repos.WithTx(ctx, func(tx *store.Repositories) error {
		var err error
		created, err = tx.Assets.Create(ctx, a)
		if err != nil {
			return fmt.Errorf("failed to create asset: %w", err)
		}

		payload := map[string]any{
			"id":   created.ID,
			"name": created.Name,
			"type": created.Type,
		}
		if created.Status != "" {
			payload["status"] = created.Status
		}
		if created.Location != "" {
			payload["location"] = created.Location
		}
		if len(created.Metadata) > 0 {
			payload["metadata"] = created.Metadata
		}

		if _, err := s.queue.WithRepository(tx.Operations).Enqueue(ctx, models.OperationCreate, created.ID, payload); err != nil {
			return fmt.Errorf("failed to enqueue create operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "asset created", "asset_id", created.ID)
	return created, nil
}

func (s *assetService) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	a, err := s.repos.Assets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	if a == nil {
		return nil, common.ErrNotFound
	}
	return a, nil
}

func (s *assetService) UpdateAsset(ctx context.Context, id string, u assets.Update) (*models.Asset, error) {
	var updated *models.Asset
	err := s.repos.WithTx(ctx, func(tx *store.Repositories) error {
		var err error
		updated, err = tx.Assets.Update(ctx, id, u)
		if err != nil {
			return fmt.Errorf("failed to update asset: %w", err)
		}

		payload := map[string]any{"id": id}
		if u.Name != nil {
			payload["name"] = *u.Name
		}
		if u.Type != nil {
			payload["type"] = *u.Type
		}
		if u.Status != nil {
			payload["status"] = *u.Status
		}
		if u.Location != nil {
			payload["location"] = *u.Location
		}
		if u.Metadata != nil {
			payload["metadata"] = u.Metadata
		}

		if _, err := s.queue.WithRepository(tx.Operations).Enqueue(ctx, models.OperationUpdate, id, payload); err != nil {
			return fmt.Errorf("failed to enqueue update operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "asset updated", "asset_id", id)
	return updated, nil
}

func (s *assetService) RecordScan(ctx context.Context, scan *models.ScanResult) (*models.Asset, error) {
	if scan == nil || scan.AssetID == "" {
		return nil, fmt.Errorf("scan result with asset id is required")
	}

	a, err := s.repos.Assets.FindByID(ctx, scan.AssetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("scanned asset %s: %w", scan.AssetID, common.ErrNotFound)
	}

	ts := scan.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var updated *models.Asset
	err = s.repos.WithTx(ctx, func(tx *store.Repositories) error {
		var err error
		updated, err = tx.Assets.Update(ctx, a.ID, assets.Update{LastScanned: &ts})
		if err != nil {
			return fmt.Errorf("failed to record scan time: %w", err)
		}

		if _, err := s.queue.WithRepository(tx.Operations).Enqueue(ctx, models.OperationScan, a.ID, scan.OperationPayload()); err != nil {
			return fmt.Errorf("failed to enqueue scan operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "scan recorded", "asset_id", a.ID, "scan_type", scan.ScanType)
	return updated, nil
}

func (s *assetService) TransferAsset(ctx context.Context, id, fromCustodian, toCustodian string) (*models.Operation, error) {
	if toCustodian == "" {
		return nil, fmt.Errorf("transfer target is required")
	}

	a, err := s.repos.Assets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	if a == nil {
		return nil, common.ErrNotFound
	}

	op, err := s.queue.Enqueue(ctx, models.OperationTransfer, id, map[string]any{
		"assetId":       id,
		"fromCustodian": fromCustodian,
		"toCustodian":   toCustodian,
		"transferredAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue transfer operation: %w", err)
	}

	s.log.Debug(ctx, "asset transfer queued", "asset_id", id, "to", toCustodian)
	return op, nil
}

func (s *assetService) DeleteAsset(ctx context.Context, id string) (*models.Operation, error) {
	a, err := s.repos.Assets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	if a == nil {
		return nil, common.ErrNotFound
	}

	op, err := s.queue.Enqueue(ctx, models.OperationDelete, id, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue delete operation: %w", err)
	}

	s.log.Debug(ctx, "asset delete queued", "asset_id", id)
	return op, nil
}
