// Package syncer drains the durable operation queue toward the remote
// authority. It owns the sync lifecycle: a periodic loop, network-event
// driven re-entry, batch dispatch with per-operation failure isolation and
// retention cleanup.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/queue"
	"github.com/fieldtrack/assetsync/internal/store/assets"
)

const (
	// DefaultInterval is the periodic sync cadence.
	DefaultInterval = 30 * time.Second

	// DefaultBatchSize is how many operations a single pass claims.
	DefaultBatchSize = 10
)

// Stats summarizes the outcome of one sync pass.
type Stats struct {
	Completed int
	Failed    int

	// Offline is set when the pass was skipped because the remote was
	// unreachable.
	Offline bool

	// Skipped is set when another pass was already in flight.
	Skipped bool
}

// Manager drains the operation queue toward the remote. Timer ticks, network
// restoration events and manual SyncNow calls all feed a capacity-one
// trigger channel, so requests that land while a pass is pending coalesce
// into a single pass.
type Manager struct {
	queue   *queue.Queue
	assets  assets.Repository
	remote  RemoteClient
	network NetworkStatus
	log     logging.Logger

	interval  time.Duration
	batchSize int

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	trigger chan struct{}
	wg      sync.WaitGroup

	passMu     sync.Mutex
	passActive bool
}

type Option func(*Manager)

// WithInterval overrides the periodic sync cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBatchSize overrides how many operations one pass claims.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func NewManager(q *queue.Queue, a assets.Repository, remote RemoteClient, network NetworkStatus, log logging.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	m := &Manager{
		queue:     q,
		assets:    a,
		remote:    remote,
		network:   network,
		log:       log,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the sync loop and schedules an immediate first pass.
// Calling Start on a running manager is a no-op; there is never more than
// one loop.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Debug(context.Background(), "sync manager already running, start ignored")
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.trigger = make(chan struct{}, 1)
	stop := m.stop
	m.mu.Unlock()

	netCh := make(chan bool, 4)
	unsubscribe := m.network.Subscribe(netCh)

	m.wg.Add(2)

	go func() {
		defer m.wg.Done()
		defer unsubscribe()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.requestPass()
			case online := <-netCh:
				if online {
					m.log.Debug(context.Background(), "network restored, scheduling sync")
					m.requestPass()
				}
			}
		}
	}()

	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-m.trigger:
				m.RunPass(context.Background())
			}
		}
	}()

	m.log.Info(context.Background(), "sync manager started", "interval", m.interval, "batch_size", m.batchSize)
	m.requestPass()
}

// Stop halts the loop. An in-flight pass is allowed to finish; Stop returns
// once both goroutines have exited. Stopping a stopped manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info(context.Background(), "sync manager stopped")
}

// Running reports whether the loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SyncNow schedules an immediate pass on a running manager. Requests that
// arrive while one is already queued coalesce.
func (m *Manager) SyncNow() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if running {
		m.requestPass()
	}
}

func (m *Manager) requestPass() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// RunPass executes one synchronous sync pass: claim a batch, dispatch each
// operation, settle its status, then purge aged completed operations. A
// failing operation never aborts its siblings. If another pass is already in
// flight the call returns immediately with Skipped set.
func (m *Manager) RunPass(ctx context.Context) Stats {
	m.passMu.Lock()
	if m.passActive {
		m.passMu.Unlock()
		return Stats{Skipped: true}
	}
	m.passActive = true
	m.passMu.Unlock()
	defer func() {
		m.passMu.Lock()
		m.passActive = false
		m.passMu.Unlock()
	}()

	if !m.network.Reachable(ctx) {
		m.log.Debug(ctx, "remote unreachable, skipping sync pass")
		return Stats{Offline: true}
	}

	batch, err := m.queue.NextBatch(ctx, m.batchSize)
	if err != nil {
		m.log.Error(ctx, "failed to load sync batch", "error", err)
		return Stats{}
	}

	var stats Stats
	for _, op := range batch {
		if err := m.queue.MarkProcessing(ctx, op.ID); err != nil {
			m.log.Error(ctx, "failed to claim operation", "operation_id", op.ID, "error", err)
			continue
		}

		if err := m.dispatch(ctx, op); err != nil {
			status, ferr := m.queue.MarkFailed(ctx, op.ID)
			if ferr != nil {
				m.log.Error(ctx, "failed to record operation failure", "operation_id", op.ID, "error", ferr)
			} else {
				m.log.Warn(ctx, "operation dispatch failed", "operation_id", op.ID, "type", op.Type, "status", status, "error", err)
			}
			if status == models.OperationStatusFailed && op.AssetID != "" {
				if err := m.assets.MarkSyncStatus(ctx, op.AssetID, models.SyncStatusFailed); err != nil {
					m.log.Warn(ctx, "failed to mark asset failed", "asset_id", op.AssetID, "error", err)
				}
			}
			stats.Failed++
			continue
		}

		if err := m.queue.MarkCompleted(ctx, op.ID); err != nil {
			m.log.Error(ctx, "failed to complete operation", "operation_id", op.ID, "error", err)
			continue
		}
		if op.AssetID != "" {
			if err := m.assets.MarkSyncStatus(ctx, op.AssetID, models.SyncStatusSynced); err != nil {
				m.log.Warn(ctx, "failed to mark asset synced", "asset_id", op.AssetID, "error", err)
			}
		}
		stats.Completed++
	}

	if _, err := m.queue.Cleanup(ctx, time.Time{}); err != nil {
		m.log.Warn(ctx, "queue cleanup failed", "error", err)
	}

	if stats.Completed > 0 || stats.Failed > 0 {
		m.log.Info(ctx, "sync pass finished", "completed", stats.Completed, "failed", stats.Failed)
	}
	return stats
}

func (m *Manager) dispatch(ctx context.Context, op *models.Operation) error {
	switch op.Type {
	case models.OperationCreate:
		return m.remote.CreateAsset(ctx, op.Payload)
	case models.OperationUpdate:
		return m.remote.UpdateAsset(ctx, op.AssetID, op.Payload)
	case models.OperationScan:
		return m.remote.RecordScan(ctx, op.AssetID, op.Payload)
	case models.OperationTransfer:
		return m.remote.TransferAsset(ctx, op.AssetID, op.Payload)
	case models.OperationDelete:
		// The remote surface has no delete call yet; acknowledge locally so
		// the tombstone does not pin the queue head.
		m.log.Warn(ctx, "delete operation acknowledged locally", "operation_id", op.ID, "asset_id", op.AssetID)
		return nil
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}
