// Package cache remembers the outcome of previous verifications so that
// incremental runs can skip files that have not changed since they were
// last found good.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/verifier/pkg/verifier/algorithm"
	"github.com/jamesainslie/verifier/pkg/verifier/types"
)

// Cache maps (absolute path, algorithm) to the last verification record.
// It is safe for concurrent use.
type Cache struct {
	store *Store
	now   func() time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int
	Good    int
	Failed  int
	Oldest  time.Time
	Newest  time.Time
}

// Open opens or creates a cache in dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	store, err := OpenStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Cache{store: store, now: time.Now}, nil
}

// OpenInMemory returns a cache that is discarded on Close.
func OpenInMemory() (*Cache, error) {
	store, err := OpenMemoryStore()
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return &Cache{store: store, now: time.Now}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the record for path and id, or ErrNotFound.
func (c *Cache) Lookup(path string, id algorithm.ID) (*Record, error) {
	rec, err := c.store.Get(MakeKey(path, id))
	if err != nil {
		return nil, err
	}
	if rec.Version != Version {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Fresh reports whether path was last verified good with the same expected
// digest and the file still has the recorded size and modification time.
func (c *Cache) Fresh(path string, id algorithm.ID, digest string, size int64, modTime time.Time) bool {
	rec, err := c.Lookup(path, id)
	if err != nil {
		return false
	}
	return rec.Status == types.Good && rec.Matches(digest, size, modTime)
}

// Record stores the outcome of verifying path.
func (c *Cache) Record(path string, id algorithm.ID, digest string, size int64, modTime time.Time, status types.Status) error {
	rec := &Record{
		Version:    Version,
		Digest:     digest,
		Size:       size,
		ModTime:    modTime.UnixNano(),
		Status:     status,
		VerifiedAt: c.now(),
	}
	return c.store.Put(MakeKey(path, id), rec)
}

// Forget removes every record for files under dir and returns how many
// were removed.
func (c *Cache) Forget(dir string) (int, error) {
	dir = filepath.Clean(dir)
	n, err := c.store.DeletePrefix([]byte(dir + string(filepath.Separator)))
	if err != nil {
		return n, err
	}
	m, err := c.store.DeletePrefix([]byte(dir + string(KeySeparator)))
	return n + m, err
}

// Clear removes every record.
func (c *Cache) Clear() (int, error) {
	return c.store.DeletePrefix(nil)
}

// Stats walks the cache and summarizes it.
func (c *Cache) Stats() (Stats, error) {
	var st Stats
	err := c.store.Each(func(_ []byte, rec *Record) error {
		st.Entries++
		switch {
		case rec.Status == types.Good:
			st.Good++
		case rec.Status.Failed():
			st.Failed++
		}
		if st.Oldest.IsZero() || rec.VerifiedAt.Before(st.Oldest) {
			st.Oldest = rec.VerifiedAt
		}
		if rec.VerifiedAt.After(st.Newest) {
			st.Newest = rec.VerifiedAt
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Stats{}, err
	}
	return st, nil
}
