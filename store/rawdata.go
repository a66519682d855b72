package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// RawDataRecorder appends one CSV row per accepted GPS fix to
// support_dir/raw_data/gps-YYYY-MM-DD-N.csv, rotating to a new file each
// local calendar day. It holds its own lock, independent of Facade's, so
// file I/O never blocks a DB transaction — per spec.md §5.
type RawDataRecorder struct {
	mu      sync.Mutex
	dir     string
	enabled bool
	file    *os.File
	writer  *csv.Writer
	day     string
}

// NewRawDataRecorder returns a recorder rooted at dir, disabled by default.
func NewRawDataRecorder(dir string) *RawDataRecorder {
	return &RawDataRecorder{dir: dir}
}

// SetEnabled toggles recording. Disabling flushes and closes the current
// file.
func (r *RawDataRecorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
	if !enabled {
		r.closeLocked()
	}
}

// Enabled reports the current toggle state.
func (r *RawDataRecorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

func (r *RawDataRecorder) closeLocked() {
	if r.writer != nil {
		r.writer.Flush()
	}
	if r.file != nil {
		r.file.Close()
	}
	r.file, r.writer, r.day = nil, nil, ""
}

// Record appends one fix as a CSV row, a no-op if recording is disabled.
func (r *RawDataRecorder) Record(t time.Time, lat, lng float64, result ProcessResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return nil
	}

	day := t.Format("2006-01-02")
	if day != r.day {
		r.closeLocked()
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("store: creating raw data dir: %w", err)
		}
		path, err := nextRawDataPath(r.dir, day)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("store: opening raw data file: %w", err)
		}
		r.file, r.writer, r.day = f, csv.NewWriter(f), day
	}

	record := []string{
		strconv.FormatInt(t.Unix(), 10),
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64),
		strconv.Itoa(int(result)),
	}
	if err := r.writer.Write(record); err != nil {
		return err
	}
	r.writer.Flush()
	return r.writer.Error()
}

// Close flushes and releases any open file.
func (r *RawDataRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
	return nil
}

// nextRawDataPath finds the first unused gps-YYYY-MM-DD-N.csv path for day,
// so a restart within the same day appends a new file rather than
// clobbering a previous run's rows.
func nextRawDataPath(dir, day string) (string, error) {
	for n := 0; ; n++ {
		path := filepath.Join(dir, fmt.Sprintf("gps-%s-%d.csv", day, n))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
}
