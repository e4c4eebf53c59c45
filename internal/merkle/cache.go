// Package merkle implements the content-hash fingerprint cache that the
// Index Manager uses to detect added, modified, and deleted files between
// indexing runs without re-hashing unchanged content.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/codeintel/engine/internal/fileutil"
)

const schemaVersion = 1

// Record is a single file's fingerprint: content hash plus the (mtime,
// size) pair used to short-circuit re-hashing when neither has changed.
type Record struct {
	Hash  string `json:"hash"`
	Mtime int64  `json:"mtime"`
	Size  int64  `json:"size"`
}

// Changes is the result of a find_changed pass.
type Changes struct {
	Added     []string
	Modified  []string
	Unchanged []string
}

// Cache maps file path to its last-known fingerprint. Zero value is a
// usable, empty cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Record
	dirty   bool
}

type diskFormat struct {
	Version int               `json:"version"`
	Entries map[string]Record `json:"entries"`
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Record)}
}

// Load reads a persisted cache from path. Unreadable or malformed content
// yields an empty cache rather than an error, matching the store's
// tolerant-load contract for auxiliary state.
func Load(path string) *Cache {
	c := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var df diskFormat
	if err := json.Unmarshal(data, &df); err != nil {
		return c
	}
	if df.Entries == nil {
		return c
	}
	c.entries = df.Entries
	return c
}

// Save persists the cache to path as JSON, using an exclusive file lock
// and an atomic rename so a concurrent reader never observes a partial
// write.
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	snapshot := make(map[string]Record, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	if err := fileutil.EnsureParentDir(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := fileutil.FlockExclusive(f, false); err != nil {
		f.Close()
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(diskFormat{Version: schemaVersion, Entries: snapshot})
	fileutil.Funlock(f)
	f.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := fileutil.ReplaceFileAtomically(tmp, path); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// HashFile returns the fingerprint for path. If a cached entry exists and
// both mtime and size are unchanged from the given stat values, it
// returns the cached hash without re-reading the file. Otherwise it
// re-reads the file, recomputes the hash, and updates the cache.
func (c *Cache) HashFile(path string, mtime, size int64, read func() ([]byte, error)) (Record, error) {
	c.mu.RLock()
	cached, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && cached.Mtime == mtime && cached.Size == size {
		return cached, nil
	}

	data, err := read()
	if err != nil {
		return Record{}, err
	}
	sum := sha256.Sum256(data)
	rec := Record{Hash: hex.EncodeToString(sum[:]), Mtime: mtime, Size: size}

	c.mu.Lock()
	c.entries[path] = rec
	c.dirty = true
	c.mu.Unlock()
	return rec, nil
}

// FindChanged classifies the given files (path -> current mtime/size)
// against the cache, updating the cache in place. A second call with the
// same input (and no underlying file changes) returns empty Added and
// Modified sets — the idempotence invariant.
func (c *Cache) FindChanged(current map[string]struct {
	Mtime int64
	Size  int64
}, read func(path string) ([]byte, error)) (Changes, error) {
	var ch Changes
	for path, stat := range current {
		c.mu.RLock()
		cached, ok := c.entries[path]
		c.mu.RUnlock()

		if !ok {
			rec, err := c.HashFile(path, stat.Mtime, stat.Size, func() ([]byte, error) { return read(path) })
			if err != nil {
				return ch, err
			}
			_ = rec
			ch.Added = append(ch.Added, path)
			continue
		}
		if cached.Mtime == stat.Mtime && cached.Size == stat.Size {
			ch.Unchanged = append(ch.Unchanged, path)
			continue
		}
		before := cached.Hash
		rec, err := c.HashFile(path, stat.Mtime, stat.Size, func() ([]byte, error) { return read(path) })
		if err != nil {
			return ch, err
		}
		if rec.Hash == before {
			ch.Unchanged = append(ch.Unchanged, path)
		} else {
			ch.Modified = append(ch.Modified, path)
		}
	}
	sort.Strings(ch.Added)
	sort.Strings(ch.Modified)
	sort.Strings(ch.Unchanged)
	return ch, nil
}

// FindDeleted returns cache entries whose path is absent from
// currentFiles.
func (c *Cache) FindDeleted(currentFiles map[string]struct{}) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var deleted []string
	for path := range c.entries {
		if _, ok := currentFiles[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	sort.Strings(deleted)
	return deleted
}

// Remove drops a path's fingerprint, used after a file is deleted.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.dirty = true
	c.mu.Unlock()
}

// Dirty reports whether the cache has changed since the last Save or
// BuildTree call, both of which clear the flag.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// BuildTree computes a Merkle root over the sorted (path, hash) pairs in
// the cache. The result is deterministic regardless of insertion order;
// odd levels duplicate their last node, the conventional Merkle padding
// rule. Calling BuildTree clears the dirty flag.
func (c *Cache) BuildTree() string {
	c.mu.Lock()
	defer func() {
		c.dirty = false
		c.mu.Unlock()
	}()

	if len(c.entries) == 0 {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:])
	}

	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	level := make([][]byte, 0, len(paths))
	for _, p := range paths {
		h := sha256.New()
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write([]byte(c.entries[p].Hash))
		level = append(level, h.Sum(nil))
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return hex.EncodeToString(level[0])
}

// Len reports the number of tracked files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
