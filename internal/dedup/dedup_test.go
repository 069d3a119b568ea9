package dedup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndHas(t *testing.T) {
	state := NewState()
	now := time.Now()

	require.NoError(t, state.Record("acc-1", "h1", "t1", now))
	assert.True(t, state.Has("acc-1", "h1"))
	assert.False(t, state.Has("acc-1", "h2"))
	assert.False(t, state.Has("acc-2", "h1"), "hashes are scoped per account")

	// Repeated sighting bumps the count instead of replacing the record.
	require.NoError(t, state.Record("acc-1", "h1", "t1", now.Add(time.Hour)))
	record := state.Hashes["acc-1"]["h1"]
	assert.Equal(t, 2, record.Count)
	assert.Equal(t, now.Add(time.Hour).Unix(), record.LastSeen.Unix())
	assert.Equal(t, now.Unix(), record.FirstSeen.Unix())
}

func TestRecordValidation(t *testing.T) {
	state := NewState()
	assert.Error(t, state.Record("", "h1", "t1", time.Now()))
	assert.Error(t, state.Record("acc-1", "", "t1", time.Now()))
}

func TestSetFor(t *testing.T) {
	state := NewState()
	require.NoError(t, state.Record("acc-1", "h1", "t1", time.Now()))
	require.NoError(t, state.Record("acc-1", "h2", "t2", time.Now()))
	require.NoError(t, state.Record("acc-2", "h3", "t3", time.Now()))

	set := state.SetFor("acc-1")
	assert.True(t, set.Has("h1"))
	assert.True(t, set.Has("h2"))
	assert.False(t, set.Has("h3"))

	empty := state.SetFor("acc-9")
	assert.False(t, empty.Has("h1"))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	state := NewState()
	require.NoError(t, state.Record("acc-1", "h1", "t1", time.Now()))
	require.NoError(t, state.Record("acc-1", "h2", "t2", time.Now()))
	require.NoError(t, SaveState(state, path))

	loaded, err := LoadState(path)
	require.NoError(t, err)
	assert.True(t, loaded.Has("acc-1", "h1"))
	assert.Equal(t, 2, loaded.TotalHashes())
	assert.Equal(t, 2, loaded.Metadata.TotalHashes)
	assert.False(t, loaded.Metadata.LastUpdated.IsZero())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadState(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, os.IsNotExist(err), "missing file keeps the bare os error")
}

func TestLoadRejectsBadState(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0644))
	_, err := LoadState(corrupt)
	assert.ErrorContains(t, err, "failed to parse state file")

	wrongVersion := filepath.Join(dir, "version.json")
	require.NoError(t, os.WriteFile(wrongVersion, []byte(`{"version": 99}`), 0644))
	_, err = LoadState(wrongVersion)
	assert.ErrorContains(t, err, "unsupported state file version")
}

func TestSaveDoesNotLeaveTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, SaveState(NewState(), path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
