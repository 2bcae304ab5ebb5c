package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home", ".verity")

	store, err := NewConfigStore(dir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), store.Path())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_Errors(t *testing.T) {
	t.Run("directory cannot be created", func(t *testing.T) {
		store, err := NewConfigStore("/dev/null/verity")
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("corrupted file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[pipeline\nchunk_size = "), 0600))

		store, err := NewConfigStore(dir)
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("comment-only file is empty", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("# verity\n\n"), 0600))

		store, err := NewConfigStore(dir)
		require.NoError(t, err)
		_, ok := store.Get("user.id")
		assert.False(t, ok)
	})
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("user.id", "alice"))
	require.NoError(t, store.Set("pipeline.batch_size", 8))
	require.NoError(t, store.Set("scheduler.enabled", true))
	require.NoError(t, store.Set("retrieval.threshold", 0.45))
	require.NoError(t, store.Set("retrieval.limit", int64(7)))

	assert.Equal(t, "alice", store.GetString("user.id"))
	assert.Equal(t, 8, store.GetInt("pipeline.batch_size"))
	assert.Equal(t, 7, store.GetInt("retrieval.limit"))
	assert.True(t, store.GetBool("scheduler.enabled"))
	assert.InDelta(t, 0.45, store.GetFloat("retrieval.threshold"), 1e-9)
	assert.InDelta(t, 7.0, store.GetFloat("retrieval.limit"), 1e-9)

	assert.Empty(t, store.GetString("pipeline.batch_size"))
	assert.Zero(t, store.GetInt("user.id"))
	assert.False(t, store.GetBool("user.id"))
	assert.Zero(t, store.GetFloat("user.id"))
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_SetPersistsWithPrivatePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("ai.embedding.provider", "ollama"))
	require.NoError(t, store.Set("ai.embedding.provider", "openai"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "openai", reloaded.GetString("ai.embedding.provider"))
}

func TestConfigStore_SaveReload_PreservesTypes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	values := map[string]any{
		"user.id":                          "alice",
		"pipeline.chunk_size":              int64(250),
		"pipeline.min_words":               int64(30),
		"scheduler.enabled":                true,
		"scheduler.jobs.ingest.enabled":    false,
		"retrieval.threshold":              0.3,
		"scheduler.jobs.ingest.interval_s": int64(30),
	}
	for key, val := range values {
		require.NoError(t, store.Set(key, val))
	}

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "alice", reloaded.GetString("user.id"))
	assert.Equal(t, 250, reloaded.GetInt("pipeline.chunk_size"))
	assert.Equal(t, 30, reloaded.GetInt("pipeline.min_words"))
	assert.True(t, reloaded.GetBool("scheduler.enabled"))
	assert.False(t, reloaded.GetBool("scheduler.jobs.ingest.enabled"))
	assert.InDelta(t, 0.3, reloaded.GetFloat("retrieval.threshold"), 1e-9)
	assert.Equal(t, 30, reloaded.GetInt("scheduler.jobs.ingest.interval_s"))
}

func TestConfigStore_SaveWritesNestedTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("pipeline.chunk_size", 400))
	require.NoError(t, store.Set("ai.llm.provider", "openai"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[pipeline]")
	assert.Contains(t, string(data), "chunk_size = 400")
	assert.NotContains(t, string(data), `"pipeline.chunk_size"`)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 400, reloaded.GetInt("pipeline.chunk_size"))
	assert.Equal(t, "openai", reloaded.GetString("ai.llm.provider"))
}

func TestConfigStore_WriteErrors(t *testing.T) {
	t.Run("value cannot be encoded", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)

		assert.Error(t, store.Set("pipeline.hook", make(chan int)))
	})

	t.Run("path is a directory", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, os.Mkdir(store.Path(), 0700))

		assert.Error(t, store.Set("user.id", "alice"))
	})

	t.Run("file turns invalid", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.Set("user.id", "alice"))
		require.NoError(t, os.WriteFile(store.Path(), []byte("][ not toml"), 0600))

		assert.Error(t, store.Load())
	})
}

func TestConfigStore_ConcurrentSet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, key := range []string{"user.id", "llm.model", "embedding.model", "server.addr"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			_ = store.Set(k, "value")
			_ = store.GetString(k)
		}(key)
	}
	wg.Wait()

	assert.Equal(t, "value", store.GetString("server.addr"))
}

func TestNestMap_KeepsConflictingKeysFlat(t *testing.T) {
	nested := nestMap(map[string]any{
		"a":   1,
		"a.b": 2,
		"c.d": 3,
	})

	assert.Equal(t, 1, nested["a"])
	assert.Equal(t, 2, nested["a.b"])
	assert.Equal(t, map[string]any{"d": 3}, nested["c"])
}
