// Package assetsync is the embeddable offline-first synchronization core for
// asset-tracking clients. The host application supplies the platform pieces
// it alone can provide (the secure key store, the remote API client, network
// reachability and hardware capture drivers); this package supplies the
// durable encrypted record store, the prioritized operation queue, the sync
// loop and the conflict resolver.
//
// Typical usage:
//
//	client, err := assetsync.Open(ctx, nil, keys, remote, network)
//	if err != nil { ... }
//	defer client.Close()
//	client.Start()
//
//	a, err := client.Assets().CreateAsset(ctx, &assetsync.Asset{Name: "forklift", Type: "vehicle"})
package assetsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldtrack/assetsync/internal/capture"
	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/config"
	"github.com/fieldtrack/assetsync/internal/conflict"
	"github.com/fieldtrack/assetsync/internal/cryptox"
	"github.com/fieldtrack/assetsync/internal/keystore"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/queue"
	"github.com/fieldtrack/assetsync/internal/service"
	"github.com/fieldtrack/assetsync/internal/store"
	"github.com/fieldtrack/assetsync/internal/store/assets"
	"github.com/fieldtrack/assetsync/internal/syncer"
)

// Sentinel errors surfaced by the core.
var (
	ErrNotFound                 = common.ErrNotFound
	ErrKeyUnavailable           = common.ErrKeyUnavailable
	ErrDecryptionFailed         = common.ErrDecryptionFailed
	ErrBusy                     = common.ErrBusy
	ErrQueueFull                = common.ErrQueueFull
	ErrPermissionDenied         = common.ErrPermissionDenied
	ErrNoReading                = common.ErrNoReading
	ErrManualResolutionRequired = common.ErrManualResolutionRequired
)

// Data types.
type (
	Asset       = models.Asset
	AssetUpdate = assets.Update
	SyncStatus  = models.SyncStatus

	Operation       = models.Operation
	OperationType   = models.OperationType
	OperationStatus = models.OperationStatus
	Priority        = models.Priority

	Conflict     = models.Conflict
	ConflictType = models.ConflictType
	Strategy     = models.Strategy

	ScanResult = models.ScanResult
	GeoPoint   = models.GeoPoint
)

const (
	SyncStatusPending = models.SyncStatusPending
	SyncStatusSynced  = models.SyncStatusSynced
	SyncStatusFailed  = models.SyncStatusFailed

	OperationCreate   = models.OperationCreate
	OperationUpdate   = models.OperationUpdate
	OperationDelete   = models.OperationDelete
	OperationTransfer = models.OperationTransfer
	OperationScan     = models.OperationScan

	PriorityLow    = models.PriorityLow
	PriorityMedium = models.PriorityMedium
	PriorityHigh   = models.PriorityHigh

	StrategyLocalWins        = models.StrategyLocalWins
	StrategyRemoteWins       = models.StrategyRemoteWins
	StrategyLastModifiedWins = models.StrategyLastModifiedWins
	StrategyManual           = models.StrategyManual
)

// Collaborator interfaces implemented by the host application.
type (
	KeyStore      = keystore.Store
	KeyPolicy     = keystore.Policy
	RemoteClient  = syncer.RemoteClient
	NetworkStatus = syncer.NetworkStatus
	Logger        = logging.Logger

	CaptureDriver    = capture.Driver
	CaptureSource    = capture.Source
	CaptureOption    = capture.Option
	RawRead          = capture.RawRead
	LocationProvider = capture.LocationProvider
	PermissionFunc   = capture.PermissionFunc

	Config       = config.Config
	AssetService = service.AssetService
)

// Key store implementations and capture source constructors, re-exported for
// hosts that do not need platform-specific ones.
var (
	NewMemoryKeyStore = keystore.NewMemory
	NewFileKeyStore   = keystore.NewFile
	NewSlogLogger     = logging.NewSlogLogger

	NewBarcodeSource = capture.NewBarcode
	NewNFCSource     = capture.NewNFC
	NewRFIDSource    = capture.NewRFID

	WithScanTimeout      = capture.WithScanTimeout
	WithLocationTimeout  = capture.WithLocationTimeout
	WithLocationProvider = capture.WithLocationProvider
	WithPermission       = capture.WithPermission

	LoadConfig = config.LoadConfig

	DetectConflict = conflict.Detect
)

// Client is the assembled sync core. It owns the database handle, the device
// cipher, the operation queue and the sync loop.
type Client struct {
	cfg      *config.Config
	cipher   *cryptox.Cipher
	repos    *store.Repositories
	queue    *queue.Queue
	resolver *conflict.Resolver
	manager  *syncer.Manager
	assets   service.AssetService
	log      logging.Logger
}

// ClientOption customizes Open.
type ClientOption func(*openConfig)

type openConfig struct {
	log logging.Logger
}

// WithLogger installs a structured logger; the default discards everything.
func WithLogger(l Logger) ClientOption {
	return func(c *openConfig) { c.log = l }
}

// Open assembles the sync core: it derives the device cipher from the key
// store (generating a key on first run), opens and migrates the local
// database, and wires the queue, the conflict resolver and the sync manager.
// The sync loop is not started; call Start.
//
// A nil cfg means defaults.
func Open(ctx context.Context, cfg *Config, keys KeyStore, remote RemoteClient, network NetworkStatus, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = &config.Config{}
		cfg.LoadDefaults()
	}

	oc := &openConfig{log: logging.Nop()}
	for _, opt := range opts {
		opt(oc)
	}
	log := oc.log

	cipher := cryptox.NewCipher(keys)
	if _, err := cipher.GetKey(ctx); err != nil {
		if !errors.Is(err, common.ErrKeyUnavailable) {
			return nil, fmt.Errorf("failed to load device key: %w", err)
		}
		if err := cipher.GenerateKey(ctx); err != nil {
			return nil, fmt.Errorf("failed to generate device key: %w", err)
		}
		log.Info(ctx, "device key generated")
	}

	repos, err := store.Open(ctx, cfg.DatabasePath, cipher, log)
	if err != nil {
		return nil, err
	}

	q := queue.New(repos.Operations, log,
		queue.WithMaxRetries(cfg.MaxRetries),
		queue.WithMaxSize(cfg.MaxQueueSize),
		queue.WithRetention(cfg.Retention))

	return &Client{
		cfg:      cfg,
		cipher:   cipher,
		repos:    repos,
		queue:    q,
		resolver: conflict.NewResolver(repos.Conflicts, q, log),
		manager: syncer.NewManager(q, repos.Assets, remote, network, log,
			syncer.WithInterval(cfg.SyncInterval),
			syncer.WithBatchSize(cfg.SyncBatchSize)),
		assets: service.NewAssetService(repos, q, log),
		log:    log,
	}, nil
}

// Assets is the storage facade for creating, updating, scanning and
// transferring assets. Every write it performs also enqueues the matching
// operation.
func (c *Client) Assets() AssetService { return c.assets }

// Queue exposes the operation queue, mainly for inspection and manual
// reprioritization.
func (c *Client) Queue() *queue.Queue { return c.queue }

// Resolver exposes the conflict resolver.
func (c *Client) Resolver() *conflict.Resolver { return c.resolver }

// Syncer exposes the sync manager.
func (c *Client) Syncer() *syncer.Manager { return c.manager }

// Start launches the background sync loop. Idempotent.
func (c *Client) Start() { c.manager.Start() }

// Stop halts the sync loop, letting an in-flight pass finish. Idempotent.
func (c *Client) Stop() { c.manager.Stop() }

// SyncNow schedules an immediate sync pass on a running loop.
func (c *Client) SyncNow() { c.manager.SyncNow() }

// Close stops the sync loop and closes the database.
func (c *Client) Close() error {
	c.manager.Stop()
	return c.repos.DB.Close()
}
