// Package capture abstracts the physical readers that originate scan
// events: optical codes, proximity (NFC) tags and radio (RFID) tags.
//
// Each concrete source wraps an exclusive hardware session. The underlying
// driver delivers raw reads through a callback; Scan converts that into a
// synchronous blocking call backed by an internal channel, so callers see a
// plain "scan returns a result or fails" contract.
//
// A source never touches the operation queue. Converting a ScanResult into
// a scan operation is the caller's responsibility, which keeps every source
// independently testable.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/logging"
	"github.com/fieldtrack/assetsync/internal/models"
)

const (
	// DefaultScanTimeout bounds the wait for a physical reading.
	DefaultScanTimeout = 30 * time.Second

	// DefaultLocationTimeout bounds the best-effort geolocation lookup.
	DefaultLocationTimeout = 5 * time.Second
)

// RawRead is an unvalidated reading delivered by a hardware driver.
type RawRead struct {
	// Data is the identifier payload: decoded code contents, tag id, EPC.
	Data string

	// Extra carries driver-specific attributes (symbology, tag technology).
	Extra map[string]any
}

// Driver is the seam to the physical capture hardware, an external
// collaborator of this core.
type Driver interface {
	// Supported reports whether the hardware exists on this device. Checked
	// once at source construction.
	Supported() bool

	// Activate opens the hardware session and delivers raw reads to handler
	// until the returned stop function is called.
	Activate(handler func(RawRead)) (stop func(), err error)
}

// PermissionFunc answers whether the hardware permission has been granted.
type PermissionFunc func(ctx context.Context) bool

// LocationProvider resolves the device position, preferring high accuracy.
// It is optional; scan results simply omit location when it is absent or
// erroring.
type LocationProvider interface {
	Current(ctx context.Context, highAccuracy bool) (*models.GeoPoint, error)
}

// Source is the uniform contract implemented by every capture modality.
type Source interface {
	// Name identifies the modality ("barcode", "nfc", "rfid").
	Name() string

	// Scan performs one physical read. It fails with common.ErrBusy when a
	// scan is already in flight on this instance, common.ErrPermissionDenied
	// when the hardware permission is missing, and common.ErrNoReading when
	// nothing valid was presented within the timeout.
	Scan(ctx context.Context) (*models.ScanResult, error)
}

// scanner holds the behavior shared by all modalities. Exclusivity of the
// hardware session is enforced by the busy flag: concurrent Scan calls are
// rejected, never queued.
type scanner struct {
	name        string
	driver      Driver
	permission  PermissionFunc
	location    LocationProvider
	scanTimeout time.Duration
	locTimeout  time.Duration
	validate    func(RawRead) bool
	attributes  func(RawRead) map[string]any
	log         logging.Logger

	mu   sync.Mutex
	busy bool
}

func (s *scanner) Name() string { return s.name }

func (s *scanner) Scan(ctx context.Context) (*models.ScanResult, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, common.ErrBusy
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if s.permission != nil && !s.permission(ctx) {
		return nil, common.ErrPermissionDenied
	}

	reads := make(chan RawRead, 1)
	stop, err := s.driver.Activate(func(r RawRead) {
		select {
		case reads <- r:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer stop()

	timer := time.NewTimer(s.scanTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, common.ErrNoReading
		case raw := <-reads:
			if !s.validate(raw) {
				s.log.Debug(ctx, "rejected invalid read", "source", s.name, "data", raw.Data)
				continue
			}
			return s.promote(ctx, raw), nil
		}
	}
}

// promote turns an accepted raw read into a normalized ScanResult, attaching
// best-effort geolocation.
func (s *scanner) promote(ctx context.Context, raw RawRead) *models.ScanResult {
	res := &models.ScanResult{
		AssetID:   raw.Data,
		ScanType:  s.name,
		Timestamp: time.Now().UTC(),
	}
	if s.attributes != nil {
		res.Metadata = s.attributes(raw)
	}
	res.Location = s.currentLocation(ctx)
	return res
}

func (s *scanner) currentLocation(ctx context.Context) *models.GeoPoint {
	if s.location == nil {
		return nil
	}
	locCtx, cancel := context.WithTimeout(ctx, s.locTimeout)
	defer cancel()

	point, err := s.location.Current(locCtx, true)
	if err != nil {
		// Location is optional metadata; a denied or slow provider must not
		// fail the scan.
		s.log.Debug(ctx, "location unavailable", "source", s.name, "error", err)
		return nil
	}
	return point
}

// Option configures a capture source.
type Option func(*scanner)

func WithScanTimeout(d time.Duration) Option {
	return func(s *scanner) { s.scanTimeout = d }
}

func WithLocationTimeout(d time.Duration) Option {
	return func(s *scanner) { s.locTimeout = d }
}

func WithLocationProvider(p LocationProvider) Option {
	return func(s *scanner) { s.location = p }
}

func WithPermission(f PermissionFunc) Option {
	return func(s *scanner) { s.permission = f }
}

func WithLogger(l logging.Logger) Option {
	return func(s *scanner) { s.log = l }
}

func newScanner(name string, driver Driver, validate func(RawRead) bool, attributes func(RawRead) map[string]any, opts ...Option) *scanner {
	s := &scanner{
		name:        name,
		driver:      driver,
		scanTimeout: DefaultScanTimeout,
		locTimeout:  DefaultLocationTimeout,
		validate:    validate,
		attributes:  attributes,
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
