package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phishguard/phishguard/pkg/detection"
)

// JSONStore writes one JSON file per detection. Filenames start with the
// creation timestamp so a plain directory listing is already sorted by time.
type JSONStore struct {
	dir string
}

// NewJSONStore creates the storage directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) filename(dc *detection.Context) string {
	id := dc.DetectionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s.json", dc.CreatedAt.Format("20060102_150405"), id)
}

// Save persists the context. The write goes to a temp file first so a crash
// never leaves a truncated detection on disk.
func (s *JSONStore) Save(_ context.Context, dc *detection.Context) error {
	data, err := json.MarshalIndent(dc, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshaling detection: %w", err)
	}

	path := filepath.Join(s.dir, s.filename(dc))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: committing %s: %w", path, err)
	}
	log.Printf("[JSONStore] saved detection to %s", filepath.Base(path))
	return nil
}

// Load finds a detection by full or partial ID.
func (s *JSONStore) Load(_ context.Context, detectionID string) (*detection.Context, error) {
	if detectionID == "" {
		return nil, ErrNotFound
	}
	files, err := s.sortedFiles()
	if err != nil {
		return nil, err
	}
	prefix := detectionID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	for _, name := range files {
		if strings.Contains(name, prefix) {
			dc, err := s.read(name)
			if err != nil {
				return nil, err
			}
			if strings.HasPrefix(dc.DetectionID, detectionID) || dc.DetectionID == detectionID {
				return dc, nil
			}
		}
	}
	return nil, ErrNotFound
}

// LoadAll returns detections newest first.
func (s *JSONStore) LoadAll(_ context.Context, limit int) ([]*detection.Context, error) {
	files, err := s.sortedFiles()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	out := make([]*detection.Context, 0, len(files))
	for _, name := range files {
		dc, err := s.read(name)
		if err != nil {
			log.Printf("[JSONStore] skipping unreadable %s: %v", name, err)
			continue
		}
		out = append(out, dc)
	}
	return out, nil
}

func (s *JSONStore) SearchBySender(ctx context.Context, sender string) ([]*detection.Context, error) {
	return s.filter(ctx, func(dc *detection.Context) bool { return matchesSender(dc, sender) })
}

func (s *JSONStore) SearchByURL(ctx context.Context, url string) ([]*detection.Context, error) {
	return s.filter(ctx, func(dc *detection.Context) bool { return matchesURL(dc, url) })
}

func (s *JSONStore) filter(ctx context.Context, keep func(*detection.Context) bool) ([]*detection.Context, error) {
	all, err := s.LoadAll(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*detection.Context, 0)
	for _, dc := range all {
		if keep(dc) {
			out = append(out, dc)
		}
	}
	return out, nil
}

func (s *JSONStore) Statistics(ctx context.Context) (*Stats, error) {
	all, err := s.LoadAll(ctx, 0)
	if err != nil {
		return nil, err
	}
	return buildStats(all), nil
}

// Cleanup removes detection files older than the retention period.
func (s *JSONStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	all, err := s.LoadAll(ctx, 0)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for _, dc := range all {
		if dc.CreatedAt.Before(cutoff) {
			path := filepath.Join(s.dir, s.filename(dc))
			if err := os.Remove(path); err != nil {
				log.Printf("[JSONStore] failed to remove %s: %v", path, err)
				continue
			}
			deleted++
		}
	}
	if deleted > 0 {
		log.Printf("[JSONStore] cleaned up %d detections older than %s", deleted, olderThan)
	}
	return deleted, nil
}

func (s *JSONStore) Close() error { return nil }

// sortedFiles lists detection filenames newest first, relying on the
// timestamp prefix for ordering.
func (s *JSONStore) sortedFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *JSONStore) read(name string) (*detection.Context, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	var dc detection.Context
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("storage: parsing %s: %w", name, err)
	}
	return &dc, nil
}
