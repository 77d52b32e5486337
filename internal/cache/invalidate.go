package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	metaSuffix = ".meta.json"
	bodySuffix = ".body"
	tmpSuffix  = ".meta.json.tmp"
)

// isEntryFile reports whether name belongs to a page entry.
func isEntryFile(name string) bool {
	return strings.HasSuffix(name, metaSuffix) ||
		strings.HasSuffix(name, bodySuffix) ||
		strings.HasSuffix(name, tmpSuffix)
}

// ClearDir deletes every page entry in dir and leaves other files alone.
// A missing dir is created.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return ErrNotConfigured
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isEntryFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PurgeByAge drops pages saved more than maxAge ago, body and metadata
// together, and reports how many pages went. Bodies whose metadata is gone
// are dropped as well since they can never be served. Metadata that cannot
// be read is left for ClearDir.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	metas := make(map[string]bool)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaSuffix) {
			continue
		}
		key := strings.TrimSuffix(name, metaSuffix)
		metas[key] = true
		saved, ok := savedAt(filepath.Join(dir, name))
		if !ok || !saved.Before(cutoff) {
			continue
		}
		_ = os.Remove(filepath.Join(dir, key+bodySuffix))
		_ = os.Remove(filepath.Join(dir, name))
		removed++
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, bodySuffix) {
			continue
		}
		if !metas[strings.TrimSuffix(name, bodySuffix)] {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
	return removed, nil
}

func savedAt(path string) (time.Time, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || e.SavedAt.IsZero() {
		return time.Time{}, false
	}
	return e.SavedAt, true
}
