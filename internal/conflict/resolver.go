// Package conflict detects and resolves divergence between local and remote
// versions of the same asset.
//
// Detection and the automatic strategies are pure functions of their inputs;
// only the manual strategy has a side effect (persisting the conflict to the
// encrypted holding area).
package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/queue"
	"github.com/fieldtrack/assetsync/internal/store/conflicts"
)

// deletedStatus marks an asset tombstone in its free-form status field.
const deletedStatus = "deleted"

// Detect returns a conflict when, and only when, both versions were modified
// strictly after the last confirmed sync point. Otherwise one side is
// strictly newer and wins by absence of conflict.
func Detect(local, remote *models.Asset, lastSync time.Time) *models.Conflict {
	if local == nil || remote == nil {
		return nil
	}
	if !local.UpdatedAt.After(lastSync) || !remote.UpdatedAt.After(lastSync) {
		return nil
	}
	return &models.Conflict{
		LocalVersion:  local,
		RemoteVersion: remote,
		LastSync:      lastSync,
		Type:          classify(local, remote, lastSync),
	}
}

// classify derives the divergence shape: both sides created since the sync
// point, a tombstone on either side, or a plain double update.
func classify(local, remote *models.Asset, lastSync time.Time) models.ConflictType {
	if local.Status == deletedStatus || remote.Status == deletedStatus {
		return models.ConflictDelete
	}
	if local.CreatedAt.After(lastSync) && remote.CreatedAt.After(lastSync) {
		return models.ConflictCreate
	}
	return models.ConflictUpdate
}

// Resolver applies a resolution strategy to detected conflicts.
type Resolver struct {
	holding conflicts.Repository
	queue   *queue.Queue
	log     logging.Logger
}

func NewResolver(holding conflicts.Repository, q *queue.Queue, log logging.Logger) *Resolver {
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{holding: holding, queue: q, log: log}
}

// Resolve decides which version wins under the given strategy. Under the
// manual strategy the conflict is persisted (encrypted) with status pending
// and common.ErrManualResolutionRequired is returned: the caller must not
// apply either version.
func (r *Resolver) Resolve(ctx context.Context, c *models.Conflict, strategy models.Strategy) (*models.Asset, error) {
	switch strategy {
	case models.StrategyLocalWins:
		return c.LocalVersion, nil

	case models.StrategyRemoteWins:
		return c.RemoteVersion, nil

	case models.StrategyLastModifiedWins:
		// Strictly later wins; a tie falls back to local so the outcome is
		// deterministic.
		if c.RemoteVersion.UpdatedAt.After(c.LocalVersion.UpdatedAt) {
			return c.RemoteVersion, nil
		}
		return c.LocalVersion, nil

	case models.StrategyManual:
		stored, err := r.holding.Save(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to persist conflict: %w", err)
		}
		r.log.Info(ctx, "conflict parked for manual resolution",
			"conflict_id", stored.ID, "asset_id", stored.AssetID)
		return nil, common.ErrManualResolutionRequired

	default:
		return nil, fmt.Errorf("unknown resolution strategy: %q", strategy)
	}
}

// ApplyResolution pushes the winning version back through the normal sync
// pipeline as a high-priority update, rather than writing it silently.
func (r *Resolver) ApplyResolution(ctx context.Context, resolved *models.Asset, c *models.Conflict) error {
	payload := map[string]any{
		"name":      resolved.Name,
		"type":      resolved.Type,
		"status":    resolved.Status,
		"updatedAt": resolved.UpdatedAt.Format(time.RFC3339Nano),
	}
	if resolved.Location != "" {
		payload["location"] = resolved.Location
	}
	if resolved.Metadata != nil {
		payload["metadata"] = resolved.Metadata
	}

	_, err := r.queue.Enqueue(ctx, models.OperationUpdate, resolved.ID, payload,
		queue.WithPriority(models.PriorityHigh))
	if err != nil {
		return fmt.Errorf("failed to enqueue resolution: %w", err)
	}
	return nil
}
