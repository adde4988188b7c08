package assetsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRemote struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubRemote) note(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, method)
	return nil
}

func (s *stubRemote) CreateAsset(context.Context, map[string]any) error {
	return s.note("CreateAsset")
}

func (s *stubRemote) UpdateAsset(context.Context, string, map[string]any) error {
	return s.note("UpdateAsset")
}

func (s *stubRemote) RecordScan(context.Context, string, map[string]any) error {
	return s.note("RecordScan")
}

func (s *stubRemote) TransferAsset(context.Context, string, map[string]any) error {
	return s.note("TransferAsset")
}

func (s *stubRemote) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type stubNetwork struct{ online bool }

func (s *stubNetwork) Reachable(context.Context) bool  { return s.online }
func (s *stubNetwork) Subscribe(ch chan<- bool) func() { return func() {} }

func openClient(t *testing.T, online bool) (*Client, *stubRemote) {
	t.Helper()

	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.DatabasePath = ":memory:"

	remote := &stubRemote{}
	client, err := Open(context.Background(), cfg, NewMemoryKeyStore(), remote, &stubNetwork{online: online})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, remote
}

func TestOpen_GeneratesDeviceKeyOnFirstRun(t *testing.T) {
	keys := NewMemoryKeyStore()
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.DatabasePath = ":memory:"

	client, err := Open(context.Background(), cfg, keys, &stubRemote{}, &stubNetwork{})
	require.NoError(t, err)
	defer client.Close()

	// A second Open against the same key store reuses the key.
	cfg2 := &Config{}
	cfg2.LoadDefaults()
	cfg2.DatabasePath = ":memory:"
	client2, err := Open(context.Background(), cfg2, keys, &stubRemote{}, &stubNetwork{})
	require.NoError(t, err)
	defer client2.Close()
}

func TestClient_OfflineWriteThenSync(t *testing.T) {
	client, remote := openClient(t, true)
	ctx := context.Background()

	a, err := client.Assets().CreateAsset(ctx, &Asset{Name: "generator", Type: "equipment"})
	require.NoError(t, err)
	assert.Equal(t, SyncStatusPending, a.SyncStatus)

	_, err = client.Assets().RecordScan(ctx, &ScanResult{
		AssetID:   a.ID,
		ScanType:  "barcode",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	stats := client.Syncer().RunPass(ctx)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, []string{"RecordScan", "CreateAsset"}, remote.methods())

	synced, err := client.Assets().GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncStatusSynced, synced.SyncStatus)
}

func TestClient_ConflictRoundTrip(t *testing.T) {
	client, _ := openClient(t, true)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	local := &Asset{ID: "a1", Name: "pump", Status: "active", UpdatedAt: base.Add(10 * time.Minute), CreatedAt: base}
	remote := &Asset{ID: "a1", Name: "pump", Status: "in-repair", UpdatedAt: base.Add(5 * time.Minute), CreatedAt: base}

	c := DetectConflict(local, remote, base.Add(3*time.Minute))
	require.NotNil(t, c)

	winner, err := client.Resolver().Resolve(ctx, c, StrategyLastModifiedWins)
	require.NoError(t, err)
	assert.Equal(t, "active", winner.Status)
}

func TestClient_ManualConflictParks(t *testing.T) {
	client, _ := openClient(t, true)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	c := DetectConflict(
		&Asset{ID: "a2", UpdatedAt: base.Add(2 * time.Minute), CreatedAt: base},
		&Asset{ID: "a2", UpdatedAt: base.Add(4 * time.Minute), CreatedAt: base},
		base.Add(time.Minute),
	)
	require.NotNil(t, c)

	_, err := client.Resolver().Resolve(ctx, c, StrategyManual)
	assert.ErrorIs(t, err, ErrManualResolutionRequired)
}

func TestClient_StartStopIdempotent(t *testing.T) {
	client, _ := openClient(t, true)

	client.Start()
	client.Start()
	assert.True(t, client.Syncer().Running())

	client.Stop()
	client.Stop()
	assert.False(t, client.Syncer().Running())
}
