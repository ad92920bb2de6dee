package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickd/internal/models"
	"pickd/internal/testutil"
)

func newFileManager(t *testing.T, s EventStoreInterface) *FileManager {
	t.Helper()
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	fm := NewFileManager(compressor, s, &testutil.MockLogger{})
	t.Cleanup(fm.Close)
	return fm
}

func TestFileManager_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	s := NewEventStore()
	ev := seedEvent(t, s, "general", "standup")
	_, err := s.LoadEvent("general", ev.ID)
	require.NoError(t, err)

	fm := newFileManager(t, s)
	require.NoError(t, fm.SaveToFile(path))

	other := NewEventStore()
	fm2 := newFileManager(t, other)
	require.NoError(t, fm2.LoadFromFile(path))

	got, err := other.LoadEvent("general", ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "standup", got.Name)
	assert.Len(t, got.Participants, 2)
	assert.Equal(t, models.RuleWeekly, got.Rule)
}

func TestFileManager_PreservesTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	s := NewEventStore()
	ev := seedEvent(t, s, "general", "standup")
	loaded, err := s.LoadEvent("general", ev.ID)
	require.NoError(t, err)
	pickedAt := time.Date(2030, time.June, 1, 12, 30, 0, 0, time.UTC)
	_, err = loaded.MarkPicked(loaded.Participants[0].ID, pickedAt, models.PickManual)
	require.NoError(t, err)
	require.NoError(t, s.SaveEvent(loaded))

	fm := newFileManager(t, s)
	require.NoError(t, fm.SaveToFile(path))

	other := NewEventStore()
	require.NoError(t, newFileManager(t, other).LoadFromFile(path))

	got, err := other.LoadEvent("general", ev.ID)
	require.NoError(t, err)
	require.Len(t, got.PickHistory, 1)
	assert.Equal(t, models.PickManual, got.PickHistory[0].Method)
	require.NotNil(t, got.Participants[0].PickedAt)
	assert.True(t, got.Participants[0].PickedAt.Equal(pickedAt))
}

func TestFileManager_MissingFileIsNotAnError(t *testing.T) {
	s := NewEventStore()
	fm := newFileManager(t, s)

	require.NoError(t, fm.LoadFromFile(filepath.Join(t.TempDir(), "absent.bin")))
	assert.Equal(t, 0, s.CountEvents())
}

func TestFileManager_CorruptFileIsTerminal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a zstd stream"), 0o644))

	fm := newFileManager(t, NewEventStore())
	err := fm.LoadFromFile(path)
	require.Error(t, err)

	var storeErr *models.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.False(t, storeErr.Transient)
}

func TestFileManager_RejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	s := NewEventStore()
	seedEvent(t, s, "general", "standup")
	fm := newFileManager(t, s)

	// write a snapshot claiming a future version by hand
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	defer compressor.Close()
	raw, err := compressor.Compress([]byte(`{"version":99,"next_id":1,"channels":{}}`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	err = fm.LoadFromFile(path)
	require.Error(t, err)

	var storeErr *models.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.False(t, storeErr.Transient)
}

func TestFileManager_RejectsUnknownRecurrenceRule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")

	// a hand-edited snapshot with a rule outside the known set
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	defer compressor.Close()
	raw, err := compressor.Compress([]byte(`{"version":1,"next_id":2,"channels":{"general":{"channel":{"name":"general"},"events":{"1":{"id":1,"channel":"general","name":"standup","date":"2030-06-01T10:00:00Z","rule":"fortnightly"}}}}}`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	s := NewEventStore()
	err = newFileManager(t, s).LoadFromFile(path)
	require.Error(t, err)

	var storeErr *models.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.False(t, storeErr.Transient)
	assert.Equal(t, 0, s.CountEvents())
}

func TestFileManager_SaveLeavesNoTmpFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.bin")

	s := NewEventStore()
	seedEvent(t, s, "general", "standup")
	require.NoError(t, newFileManager(t, s).SaveToFile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot.bin", entries[0].Name())
}
