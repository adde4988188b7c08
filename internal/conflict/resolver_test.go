package conflict

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/fieldtrack/assetsync/internal/common"
	"github.com/fieldtrack/assetsync/internal/cryptox"
	"github.com/fieldtrack/assetsync/internal/keystore"
	"github.com/fieldtrack/assetsync/internal/models"
	"github.com/fieldtrack/assetsync/internal/queue"
	"github.com/fieldtrack/assetsync/internal/store/conflicts"
	"github.com/fieldtrack/assetsync/internal/store/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func asset(id string, updatedAt time.Time) *models.Asset {
	return &models.Asset{ID: id, Name: "Radio", Type: "equipment", CreatedAt: base.Add(-time.Hour), UpdatedAt: updatedAt}
}

func TestDetect_BothNewerThanLastSync(t *testing.T) {
	local := asset("a1", base.Add(10*time.Minute))
	remote := asset("a1", base.Add(5*time.Minute))

	c := Detect(local, remote, base.Add(3*time.Minute))
	require.NotNil(t, c)
	assert.Equal(t, models.ConflictUpdate, c.Type)
	assert.Same(t, local, c.LocalVersion)
	assert.Same(t, remote, c.RemoteVersion)
}

func TestDetect_OneSideUnchangedSinceSync(t *testing.T) {
	tests := []struct {
		name     string
		local    time.Time
		remote   time.Time
		lastSync time.Time
	}{
		{"only local changed", base.Add(10 * time.Minute), base.Add(-time.Minute), base},
		{"only remote changed", base.Add(-time.Minute), base.Add(10 * time.Minute), base},
		{"neither changed", base.Add(-2 * time.Minute), base.Add(-time.Minute), base},
		{"local equal to lastSync is not strictly after", base, base.Add(time.Minute), base},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, Detect(asset("a1", tc.local), asset("a1", tc.remote), tc.lastSync))
		})
	}
}

func TestDetect_NilVersions(t *testing.T) {
	assert.Nil(t, Detect(nil, asset("a1", base), base))
	assert.Nil(t, Detect(asset("a1", base), nil, base))
}

// Property: detect is non-nil iff both sides are strictly after lastSync.
func TestDetect_RandomizedTimestampTriples(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		localAt := base.Add(time.Duration(rng.Intn(200)-100) * time.Minute)
		remoteAt := base.Add(time.Duration(rng.Intn(200)-100) * time.Minute)
		lastSync := base.Add(time.Duration(rng.Intn(200)-100) * time.Minute)

		got := Detect(asset("a1", localAt), asset("a1", remoteAt), lastSync)
		want := localAt.After(lastSync) && remoteAt.After(lastSync)
		require.Equal(t, want, got != nil,
			"local=%v remote=%v lastSync=%v", localAt, remoteAt, lastSync)
	}
}

func TestDetect_ClassifiesShape(t *testing.T) {
	lastSync := base

	bothCreated := Detect(
		&models.Asset{ID: "a", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
		&models.Asset{ID: "a", CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
		lastSync)
	require.NotNil(t, bothCreated)
	assert.Equal(t, models.ConflictCreate, bothCreated.Type)

	tombstone := Detect(
		&models.Asset{ID: "a", Status: "deleted", CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(time.Minute)},
		&models.Asset{ID: "a", CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(2 * time.Minute)},
		lastSync)
	require.NotNil(t, tombstone)
	assert.Equal(t, models.ConflictDelete, tombstone.Type)
}

func setupResolver(t *testing.T) (*Resolver, conflicts.Repository, operations.Repository) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE operations (
  id TEXT PRIMARY KEY, type TEXT NOT NULL, asset_id TEXT, data TEXT,
  status TEXT NOT NULL DEFAULT 'pending', priority INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL, retry_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE conflicts (
  id TEXT PRIMARY KEY, asset_id TEXT NOT NULL, conflict_data TEXT NOT NULL,
  created_at INTEGER NOT NULL, status TEXT NOT NULL DEFAULT 'pending'
);
`)
	require.NoError(t, err)

	cipher := cryptox.NewCipher(keystore.NewMemory())
	require.NoError(t, cipher.GenerateKey(context.Background()))

	opRepo := operations.NewSQLiteRepository(db, cipher, nil)
	cfRepo := conflicts.NewSQLiteRepository(db, cipher, nil)
	q := queue.New(opRepo, nil)
	return NewResolver(cfRepo, q, nil), cfRepo, opRepo
}

func conflictFixture() *models.Conflict {
	return &models.Conflict{
		LocalVersion:  asset("a1", base.Add(10*time.Minute)),
		RemoteVersion: asset("a1", base.Add(5*time.Minute)),
		LastSync:      base.Add(3 * time.Minute),
		Type:          models.ConflictUpdate,
	}
}

func TestResolve_LocalWins(t *testing.T) {
	r, _, _ := setupResolver(t)
	c := conflictFixture()

	got, err := r.Resolve(context.Background(), c, models.StrategyLocalWins)
	require.NoError(t, err)
	assert.Same(t, c.LocalVersion, got)
}

func TestResolve_RemoteWins(t *testing.T) {
	r, _, _ := setupResolver(t)
	c := conflictFixture()

	got, err := r.Resolve(context.Background(), c, models.StrategyRemoteWins)
	require.NoError(t, err)
	assert.Same(t, c.RemoteVersion, got)
}

func TestResolve_LastModifiedWins(t *testing.T) {
	r, _, _ := setupResolver(t)
	ctx := context.Background()

	// Local updated at T+10, remote at T+5, lastSync T+3: local wins.
	c := conflictFixture()
	got, err := r.Resolve(ctx, c, models.StrategyLastModifiedWins)
	require.NoError(t, err)
	assert.Same(t, c.LocalVersion, got)

	// Remote strictly later: remote wins.
	c2 := &models.Conflict{
		LocalVersion:  asset("a1", base.Add(5*time.Minute)),
		RemoteVersion: asset("a1", base.Add(10*time.Minute)),
		LastSync:      base,
	}
	got, err = r.Resolve(ctx, c2, models.StrategyLastModifiedWins)
	require.NoError(t, err)
	assert.Same(t, c2.RemoteVersion, got)

	// Tie falls back to local, deterministically.
	c3 := &models.Conflict{
		LocalVersion:  asset("a1", base.Add(5*time.Minute)),
		RemoteVersion: asset("a1", base.Add(5*time.Minute)),
		LastSync:      base,
	}
	got, err = r.Resolve(ctx, c3, models.StrategyLastModifiedWins)
	require.NoError(t, err)
	assert.Same(t, c3.LocalVersion, got)
}

func TestResolve_LastModifiedWins_Idempotent(t *testing.T) {
	r, _, _ := setupResolver(t)
	ctx := context.Background()
	c := conflictFixture()

	first, err := r.Resolve(ctx, c, models.StrategyLastModifiedWins)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, c, models.StrategyLastModifiedWins)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestResolve_ManualParksConflict(t *testing.T) {
	r, cfRepo, _ := setupResolver(t)
	ctx := context.Background()

	got, err := r.Resolve(ctx, conflictFixture(), models.StrategyManual)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, common.ErrManualResolutionRequired))

	parked, err := cfRepo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "a1", parked[0].AssetID)
}

func TestResolve_UnknownStrategy(t *testing.T) {
	r, _, _ := setupResolver(t)
	_, err := r.Resolve(context.Background(), conflictFixture(), models.Strategy("coin_flip"))
	require.Error(t, err)
}

func TestApplyResolution_EnqueuesHighPriorityUpdate(t *testing.T) {
	r, _, opRepo := setupResolver(t)
	ctx := context.Background()

	c := conflictFixture()
	resolved, err := r.Resolve(ctx, c, models.StrategyLastModifiedWins)
	require.NoError(t, err)

	require.NoError(t, r.ApplyResolution(ctx, resolved, c))

	ops, err := opRepo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationUpdate, ops[0].Type)
	assert.Equal(t, models.PriorityHigh, ops[0].Priority)
	assert.Equal(t, "a1", ops[0].AssetID)
	assert.Equal(t, "Radio", ops[0].Payload["name"])
}
