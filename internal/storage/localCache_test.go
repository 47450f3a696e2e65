package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hkboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLocalCache(t *testing.T, quota int64) (*LocalCache, string) {
	t.Helper()
	dir := t.TempDir()
	cache, err := OpenLocalCache(context.Background(), dir, quota)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return cache, dir
}

func TestKVFile_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")

	first := NewKVFile(path, 0)
	require.NoError(t, first.Set("rooms", `[1,2,3]`))
	require.NoError(t, first.Set("lastResetDate", `"2026-10-16"`))
	require.NoError(t, first.Delete("rooms"))

	second := NewKVFile(path, 0)
	_, ok, err := second.Get("rooms")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := second.Get("lastResetDate")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"2026-10-16"`, value)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestKVFile_QuotaRefusesWithoutLosingState(t *testing.T) {
	kv := NewKVFile(filepath.Join(t.TempDir(), "kv.json"), 64)
	require.NoError(t, kv.Set("a", `"small"`))

	err := kv.Set("b", `"`+strings.Repeat("x", 100)+`"`)
	assert.ErrorIs(t, err, ErrCapacity)

	value, ok, err := kv.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"small"`, value)
	_, ok, _ = kv.Get("b")
	assert.False(t, ok)
}

func TestKVFile_CorruptFileStartsOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rooms": [`), 0o600))

	kv := NewKVFile(path, 0)
	_, _, err := kv.Get("rooms")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, kv.Set("rooms", `[]`))
	value, ok, err := kv.Get("rooms")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, value)
}

func TestKVFile_CorruptEntryDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks": "[{\"id\":"}`), 0o600))

	kv := NewKVFile(path, 0)
	_, ok, err := kv.Get("tasks")
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.False(t, ok)

	_, ok, err = kv.Get("tasks")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalCache_ReadWriteCollection(t *testing.T) {
	cache, _ := openTestLocalCache(t, 0)
	ctx := context.Background()

	_, err := cache.Read(ctx, models.CollectionRooms)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cache.Write(ctx, WriteRequest{Collection: models.CollectionRooms, Snapshot: json.RawMessage(`[{"number":"101"}]`)}))

	data, err := cache.Read(ctx, models.CollectionRooms)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"number":"101"}]`, string(data))
}

func TestLocalCache_CapacityAbsorbedBySQLite(t *testing.T) {
	cache, dir := openTestLocalCache(t, 128)
	ctx := context.Background()
	small := json.RawMessage(`["v1"]`)
	large := json.RawMessage(`["v2-` + strings.Repeat("y", 200) + `"]`)

	err := cache.Write(ctx, WriteRequest{Collection: models.CollectionMessages, Snapshot: small})
	require.NoError(t, err)
	value, ok, err := cache.kv.Get(string(models.CollectionMessages))
	require.NoError(t, err)
	require.True(t, ok, "small value fits the kv file")
	assert.JSONEq(t, string(small), value)

	err = cache.Write(ctx, WriteRequest{Collection: models.CollectionMessages, Snapshot: large})
	require.NoError(t, err)

	data, err := cache.Read(ctx, models.CollectionMessages)
	require.NoError(t, err)
	assert.JSONEq(t, string(large), string(data))

	usage := cache.Usage(ctx)
	assert.Positive(t, usage.CapacityErrors)
	assert.NotNil(t, usage.LastCapacityErrorAt)
	assert.Equal(t, int64(128), usage.KVQuotaBytes)
	assert.Positive(t, usage.SQLiteBytes)

	_, err = os.Stat(filepath.Join(dir, SQLITE_CACHE_NAME))
	assert.NoError(t, err)
}

func TestLocalCache_FallsBackWhenKVFileLost(t *testing.T) {
	cache, dir := openTestLocalCache(t, 0)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "tasks", `[{"id":"t1"}]`))

	require.NoError(t, os.Remove(filepath.Join(dir, KV_FILE_NAME)))
	reopened := NewLocalCache(NewKVFile(filepath.Join(dir, KV_FILE_NAME), 0), cache.db)

	value, ok, err := reopened.Get(ctx, "tasks")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"t1"}]`, value)

	_, err = os.Stat(filepath.Join(dir, KV_FILE_NAME))
	assert.NoError(t, err, "kv file is re-seeded from sqlite")
}

func TestLocalCache_Markers(t *testing.T) {
	cache, _ := openTestLocalCache(t, 0)
	ctx := context.Background()

	_, ok, err := cache.GetMarker(ctx, "lastResetDate")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.SetMarker(ctx, "lastResetDate", "2026-10-16"))
	value, ok, err := cache.GetMarker(ctx, "lastResetDate")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-10-16", value)

	require.NoError(t, cache.Delete(ctx, "lastResetDate"))
	_, ok, err = cache.GetMarker(ctx, "lastResetDate")
	require.NoError(t, err)
	assert.False(t, ok)
}
