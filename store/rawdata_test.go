package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawDataRecorderNoopWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	r := NewRawDataRecorder(dir)
	assert.False(t, r.Enabled())

	require.NoError(t, r.Record(time.Now(), 1, 2, ProcessAppend))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRawDataRecorderWritesRowsWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	r := NewRawDataRecorder(dir)
	r.SetEnabled(true)
	assert.True(t, r.Enabled())

	day := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(day, 52.5, 13.4, ProcessAppend))
	require.NoError(t, r.Record(day.Add(time.Minute), 52.6, 13.5, ProcessNewSegment))
	require.NoError(t, r.Close())

	path := filepath.Join(dir, "gps-2026-07-31-0.csv")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "52.5")
	assert.Contains(t, string(data), "13.4")
}

func TestRawDataRecorderRotatesOnNewDay(t *testing.T) {
	dir := t.TempDir()
	r := NewRawDataRecorder(dir)
	r.SetEnabled(true)

	day1 := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC)
	require.NoError(t, r.Record(day1, 1, 1, ProcessAppend))
	require.NoError(t, r.Record(day2, 2, 2, ProcessAppend))
	require.NoError(t, r.Close())

	_, err := os.Stat(filepath.Join(dir, "gps-2026-07-30-0.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "gps-2026-07-31-0.csv"))
	assert.NoError(t, err)
}

func TestRawDataRecorderSetEnabledFalseClosesFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRawDataRecorder(dir)
	r.SetEnabled(true)
	require.NoError(t, r.Record(time.Now(), 1, 1, ProcessAppend))
	r.SetEnabled(false)
	assert.False(t, r.Enabled())

	// Re-enabling and recording again should not error even though the
	// previous file was already flushed and closed.
	r.SetEnabled(true)
	require.NoError(t, r.Record(time.Now(), 2, 2, ProcessAppend))
	require.NoError(t, r.Close())
}

func TestNextRawDataPathFindsFirstUnusedIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gps-2026-07-31-0.csv"), nil, 0o644))

	path, err := nextRawDataPath(dir, "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gps-2026-07-31-1.csv"), path)
}
