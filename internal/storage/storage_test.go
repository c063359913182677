package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAPIKeys(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetAPIKeys(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetAPIKey(ctx, "42", "torn-key"))
	require.NoError(t, db.SetTornStatsKey(ctx, "42", "ts-key"))
	require.NoError(t, db.SetAPIKey(ctx, "42", "torn-key-2"))

	keys, err := db.GetAPIKeys(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "torn-key-2", keys.Torn)
	assert.Equal(t, "ts-key", keys.TornStats)

	require.NoError(t, db.DeleteAPIKeys(ctx, "42"))
	assert.ErrorIs(t, db.DeleteAPIKeys(ctx, "42"), ErrNotFound)
}

func TestStatHistoryNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.AddStatHistory(ctx, StatRecord{
			PlayerID:  7,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Strength:  float64(100 * (i + 1)),
			Total:     float64(400 * (i + 1)),
			Level:     10 + i,
		}))
	}

	records, err := db.GetStatHistory(ctx, 7, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(1200), records[0].Total)
	assert.Equal(t, 12, records[0].Level)
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))
}

func TestFactionInfo(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	_, _, err := db.GetFactionInfo(ctx, 9)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SaveFactionInfo(ctx, 9, json.RawMessage(`{"respect":1000}`), now))
	data, updated, err := db.GetFactionInfo(ctx, 9)
	require.NoError(t, err)
	assert.JSONEq(t, `{"respect":1000}`, string(data))
	assert.Equal(t, now.Unix(), updated.Unix())
}

func TestSpies(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	old := time.Unix(1700000000, 0)
	fresh := old.Add(48 * time.Hour)

	require.NoError(t, db.SaveSpy(ctx, Spy{TargetID: 1, UserID: "a", Timestamp: old, Strength: 1, Speed: 1, Dexterity: 1, Defense: 1}))
	require.NoError(t, db.SaveSpy(ctx, Spy{TargetID: 1, UserID: "b", Timestamp: fresh, Strength: 10, Speed: 20, Dexterity: 30, Defense: 40}))
	require.NoError(t, db.SaveSpy(ctx, Spy{TargetID: 2, UserID: "a", Timestamp: fresh, Strength: 50, Speed: 50, Dexterity: 50, Defense: 50}))

	spy, err := db.LatestSpy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(100), spy.Total)
	assert.Equal(t, "manual", spy.Source)
	assert.Equal(t, fresh.Unix(), spy.Timestamp.Unix())

	avg, count, err := db.AverageSpyTotal(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.InDelta(t, 150, avg, 0.001)

	_, _, err = db.AverageSpyTotal(ctx, []int{3})
	assert.ErrorIs(t, err, ErrNotFound)
}

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.json")

	repo, err := OpenJSONFile[sample](path)
	require.NoError(t, err)
	require.NoError(t, repo.Set("a", sample{Name: "first", Count: 1}))
	require.NoError(t, repo.Set("b", sample{Name: "second", Count: 2}))
	require.NoError(t, repo.Delete("a"))
	assert.ErrorIs(t, repo.Delete("a"), ErrNotFound)

	// A second open sees exactly what the first wrote
	reopened, err := OpenJSONFile[sample](path)
	require.NoError(t, err)
	all, err := reopened.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]sample{"b": {Name: "second", Count: 2}}, all)

	_, err = reopened.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONFileRepositoryKeepsMemoryInSyncWhenWriteFails(t *testing.T) {
	dir := t.TempDir()
	repo, err := OpenJSONFile[sample](filepath.Join(dir, "sample.json"))
	require.NoError(t, err)
	require.NoError(t, repo.Set("a", sample{Name: "first", Count: 1}))

	// a regular file where the directory should be makes every write fail
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	repo.path = filepath.Join(blocker, "sample.json")

	assert.Error(t, repo.Set("a", sample{Name: "changed", Count: 9}))
	assert.Error(t, repo.Set("b", sample{Name: "new"}))
	assert.Error(t, repo.Delete("a"))

	all, err := repo.List()
	require.NoError(t, err)
	assert.Equal(t, map[string]sample{"a": {Name: "first", Count: 1}}, all)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}

func TestJSONFileRepositoryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenJSONFile[sample](path)
	assert.Error(t, err)
}

func TestKVRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKVRepository[sample](db, "samples")
	other := NewKVRepository[sample](db, "others")

	require.NoError(t, repo.Set("x", sample{Name: "x", Count: 3}))
	require.NoError(t, repo.Set("x", sample{Name: "x", Count: 4}))
	require.NoError(t, other.Set("x", sample{Name: "other"}))

	got, err := repo.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Count)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete("x"))
	_, err = repo.Get("x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = other.Get("x")
	assert.NoError(t, err)
}
