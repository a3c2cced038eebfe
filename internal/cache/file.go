package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/richhaase/code-review-crew/internal/domain"
)

// FileCache stores one JSON file per key under a directory.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

func NewFileCache(dir string, ttl time.Duration) *FileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileCache{dir: dir, ttl: ttl, now: time.Now}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the stored run for key. Expired entries are removed and reported as misses.
func (c *FileCache) Get(_ context.Context, key string) (domain.ReviewRun, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return domain.ReviewRun{}, false, nil
	}
	if err != nil {
		return domain.ReviewRun{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Corrupt entries are dropped rather than failing the review.
		_ = os.Remove(c.path(key))
		return domain.ReviewRun{}, false, nil
	}
	if c.now().Sub(e.StoredAt) > c.ttl {
		_ = os.Remove(c.path(key))
		return domain.ReviewRun{}, false, nil
	}
	return e.Run, true, nil
}

// Set writes the run for key, replacing any previous entry.
func (c *FileCache) Set(_ context.Context, key string, run domain.ReviewRun) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.Marshal(entry{StoredAt: c.now(), Run: run})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}
