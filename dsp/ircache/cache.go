package ircache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache is a two-tier store of precomputed IR spectra keyed by content hash.
// Stored and returned spectra are copies; callers may modify them freely.
//
// The memory tier holds at most the configured capacity; inserting into a
// full tier evicts the least recently accessed entry. The disk tier stores
// one .irspec file per IR. All methods are safe for concurrent use, but disk
// access blocks and must stay off the audio thread.
type Cache struct {
	cfg config

	mu      sync.RWMutex
	entries map[Hash]*entry
	clock   atomic.Uint64

	group singleflight.Group

	hits       atomic.Uint64
	misses     atomic.Uint64
	stale      atomic.Uint64
	evictions  atomic.Uint64
	diskReads  atomic.Uint64
	diskWrites atomic.Uint64
}

type entry struct {
	spectrum   *CachedSpectrum
	lastAccess atomic.Uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries    int
	Capacity   int
	Hits       uint64
	Misses     uint64
	Stale      uint64
	Evictions  uint64
	DiskReads  uint64
	DiskWrites uint64
}

// New creates a cache.
func New(opts ...Option) (*Cache, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Cache{
		cfg:     cfg,
		entries: make(map[Hash]*entry, cfg.capacity),
	}, nil
}

// Dir returns the configured cache directory, or "" when files are stored
// next to their source IRs.
func (c *Cache) Dir() string { return c.cfg.dir }

// Get returns the cached spectrum of the IR file at path. The file is hashed
// on every call; a memory hit refreshes the entry's access time, otherwise the
// disk tier is consulted. A disk entry whose source hash no longer matches the
// file is deleted and reported as a miss.
func (c *Cache) Get(path string) (*CachedSpectrum, bool, error) {
	hash, err := ComputeHash(path)
	if err != nil {
		return nil, false, err
	}

	return c.get(hash, c.filePath(path, hash))
}

// Put stores s as the spectrum of the IR file at path, stamping it with the
// file's hash, in memory and (if enabled) on disk.
func (c *Cache) Put(path string, s *CachedSpectrum) error {
	hash, err := ComputeHash(path)
	if err != nil {
		return err
	}

	return c.put(hash, s, c.filePath(path, hash))
}

// GetByHash looks up an in-memory IR by its [ComputeSamplesHash] hash. The
// disk tier is only used when a cache directory is configured.
func (c *Cache) GetByHash(hash Hash) (*CachedSpectrum, bool, error) {
	return c.get(hash, c.hashFilePath(hash))
}

// PutByHash stores s under hash.
func (c *Cache) PutByHash(hash Hash, s *CachedSpectrum) error {
	return c.put(hash, s, c.hashFilePath(hash))
}

// GetOrBuild returns the spectrum for hash, calling build on a miss.
// Concurrent callers asking for the same hash share one build. Unreadable
// disk entries are rebuilt and overwritten; a failed disk write is logged and
// the spectrum is still returned.
func (c *Cache) GetOrBuild(hash Hash, build func() (*CachedSpectrum, error)) (*CachedSpectrum, error) {
	v, err, shared := c.group.Do(hash.String(), func() (any, error) {
		s, ok, err := c.GetByHash(hash)
		if err != nil {
			c.cfg.log.WithFields(logrus.Fields{
				"function": "Cache.GetOrBuild",
				"hash":     hash.Prefix(),
				"error":    err,
			}).Warn("Unreadable cache entry, rebuilding")
		}

		if ok {
			return s, nil
		}

		s, err = build()
		if err != nil {
			return nil, fmt.Errorf("ircache: building %s: %w", hash.Prefix(), err)
		}

		if s == nil {
			return nil, fmt.Errorf("ircache: building %s: %w: nil spectrum", hash.Prefix(), ErrInvalidOption)
		}

		s.SourceHash = hash

		err = c.PutByHash(hash, s)
		if err != nil {
			c.cfg.log.WithFields(logrus.Fields{
				"function": "Cache.GetOrBuild",
				"hash":     hash.Prefix(),
				"error":    err,
			}).Warn("Failed to persist spectrum")
		}

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	s := v.(*CachedSpectrum)

	if shared {
		c.cfg.log.WithFields(logrus.Fields{
			"function": "Cache.GetOrBuild",
			"hash":     hash.Prefix(),
		}).Debug("Shared concurrent build")

		s = s.Clone()
	}

	return s, nil
}

// Clear drops every in-memory entry. Disk files are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:    c.Len(),
		Capacity:   c.cfg.capacity,
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Stale:      c.stale.Load(),
		Evictions:  c.evictions.Load(),
		DiskReads:  c.diskReads.Load(),
		DiskWrites: c.diskWrites.Load(),
	}
}

// FilePath returns the .irspec location used for the IR file at path.
func (c *Cache) FilePath(path string) (string, error) {
	hash, err := ComputeHash(path)
	if err != nil {
		return "", err
	}

	return c.filePath(path, hash), nil
}

func (c *Cache) filePath(path string, hash Hash) string {
	if c.cfg.dir != "" {
		return c.hashFilePath(hash)
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + FileExt
}

func (c *Cache) hashFilePath(hash Hash) string {
	if c.cfg.dir == "" {
		return ""
	}

	return filepath.Join(c.cfg.dir, hash.Prefix()+FileExt)
}

func (c *Cache) get(hash Hash, file string) (*CachedSpectrum, bool, error) {
	if s, ok := c.lookup(hash); ok {
		c.hits.Add(1)
		c.cfg.log.WithField("hash", hash.Prefix()).Debug("Spectrum cache hit")

		return s, true, nil
	}

	if !c.cfg.disk || file == "" {
		c.misses.Add(1)
		c.cfg.log.WithField("hash", hash.Prefix()).Debug("Spectrum cache miss")

		return nil, false, nil
	}

	s, err := ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		c.misses.Add(1)
		c.cfg.log.WithField("hash", hash.Prefix()).Debug("Spectrum cache miss")

		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	c.diskReads.Add(1)

	log := c.cfg.log.WithFields(logrus.Fields{
		"hash": hash.Prefix(),
		"file": file,
	})

	if s.SourceHash != hash {
		c.stale.Add(1)
		c.misses.Add(1)

		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithField("error", err).Warn("Failed to remove stale cache file")
		} else {
			log.Info("Removed stale cache file")
		}

		return nil, false, nil
	}

	c.store(hash, s.Clone())
	c.hits.Add(1)
	log.Debug("Loaded spectrum from disk")

	return s, true, nil
}

func (c *Cache) put(hash Hash, s *CachedSpectrum, file string) error {
	if s == nil {
		return fmt.Errorf("%w: nil spectrum", ErrInvalidOption)
	}

	stamped := s.Clone()
	stamped.SourceHash = hash

	c.store(hash, stamped)

	if !c.cfg.disk || file == "" {
		return nil
	}

	if err := WriteFile(file, stamped); err != nil {
		return err
	}

	c.diskWrites.Add(1)
	c.cfg.log.WithFields(logrus.Fields{
		"hash":       hash.Prefix(),
		"file":       file,
		"partitions": len(stamped.Partitions),
	}).Debug("Wrote spectrum to disk")

	return nil
}

func (c *Cache) lookup(hash Hash) (*CachedSpectrum, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[hash]
	if !ok {
		return nil, false
	}

	e.lastAccess.Store(c.clock.Add(1))

	return e.spectrum.Clone(), true
}

func (c *Cache) store(hash Hash, s *CachedSpectrum) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[hash]; ok {
		e.spectrum = s
		e.lastAccess.Store(c.clock.Add(1))

		return
	}

	for len(c.entries) >= c.cfg.capacity {
		c.evictOldest()
	}

	e := &entry{spectrum: s}
	e.lastAccess.Store(c.clock.Add(1))
	c.entries[hash] = e
}

// evictOldest removes the entry with the smallest access tick. c.mu must be
// held for writing.
func (c *Cache) evictOldest() {
	var (
		oldest Hash
		tick   uint64
		found  bool
	)

	for h, e := range c.entries {
		if t := e.lastAccess.Load(); !found || t < tick {
			oldest, tick, found = h, t, true
		}
	}

	if !found {
		return
	}

	delete(c.entries, oldest)
	c.evictions.Add(1)
	c.cfg.log.WithField("hash", oldest.Prefix()).Debug("Evicted spectrum from memory")
}
