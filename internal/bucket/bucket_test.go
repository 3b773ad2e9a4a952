package bucket

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBackend_RoundTrip(t *testing.T) {
	b, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)

	payload := map[string]json.RawMessage{
		"state": json.RawMessage(`{"projects":{"proj_1":{"name":"Demo"}}}`),
	}
	require.NoError(t, b.WriteBucket("api_server", payload))

	got, err := b.ReadBucket("api_server")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload["state"]), string(got["state"]))
}

func TestJSONBackend_MissingBucketIsEmpty(t *testing.T) {
	b, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)

	got, err := b.ReadBucket("never_written")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJSONBackend_NormalizesNames(t *testing.T) {
	dir := t.TempDir()
	b, err := NewJSONBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.WriteBucket("api server/state", map[string]json.RawMessage{"k": json.RawMessage(`1`)}))
	got, err := b.ReadBucket("api server/state")
	require.NoError(t, err)
	assert.Contains(t, got, "k")

	// The slash must not escape the root directory.
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "test.sqlite3"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.WriteBucket("api_server", map[string]json.RawMessage{
		"state": json.RawMessage(`{"users":{}}`),
	}))
	// Overwrite to verify the upsert path.
	require.NoError(t, b.WriteBucket("api_server", map[string]json.RawMessage{
		"state": json.RawMessage(`{"users":{"user_admin":{}}}`),
	}))

	got, err := b.ReadBucket("api_server")
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":{"user_admin":{}}}`, string(got["state"]))
}

func TestGetSet(t *testing.T) {
	b, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)

	type snapshot struct {
		Version int `json:"version"`
	}
	require.NoError(t, Set(b, "api_server", "state", snapshot{Version: 3}))

	var out snapshot
	ok, err := Get(b, "api_server", "state", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, out.Version)

	ok, err = Get(b, "api_server", "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	b, err := Open("json", dir)
	require.NoError(t, err)
	assert.IsType(t, &JSONBackend{}, b)

	b, err = Open("sqlite", dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)

	b, err = Open("", dir)
	require.NoError(t, err)
	assert.Nil(t, b)

	_, err = Open("mongo", dir)
	assert.Error(t, err)
}

func TestBackend_CloseBothBackends(t *testing.T) {
	var b Backend
	j, err := NewJSONBackend(t.TempDir())
	require.NoError(t, err)
	b = j
	assert.NoError(t, b.Close())

	s, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "close.sqlite3"))
	require.NoError(t, err)
	b = s
	assert.NoError(t, b.Close())
}
