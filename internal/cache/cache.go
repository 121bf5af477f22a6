// Package cache memoizes expensive analysis results keyed by
// (analysis type, identifier), with optional invalidation against the
// modification time of the file an identifier was derived from.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// DefaultTTL applies when Put is called without an explicit TTL
const DefaultTTL = time.Hour

// AnalysisCache is the typed front of a Store. It is safe for use by one
// generation run at a time; the stores themselves are goroutine-safe.
type AnalysisCache struct {
	store Store
	ttl   time.Duration
	log   *logging.Logger
}

// New wraps store. ttl <= 0 selects DefaultTTL.
func New(store Store, ttl time.Duration, log *logging.Logger) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.Discard()
	}
	return &AnalysisCache{store: store, ttl: ttl, log: log}
}

// Open builds the cache selected by configuration. Relative sqlite paths are
// resolved against projectRoot.
func Open(cfg config.CacheConfig, projectRoot string, log *logging.Logger) (*AnalysisCache, error) {
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path != ":memory:" && !filepath.IsAbs(path) {
			path = filepath.Join(projectRoot, path)
		}
		store, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return New(store, cfg.TTL, log), nil
	case "memory", "":
		return New(NewMemoryStore(), cfg.TTL, log), nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

// Key returns the store key for (typ, id). The type stays readable as a
// prefix so ClearType can drop one analysis type without touching others.
func Key(typ, id string) string {
	sum := sha256.Sum256([]byte(typ + ":" + id))
	return typ + "/" + hex.EncodeToString(sum[:])
}

// Get decodes the cached value into dst and reports whether it was found
func (c *AnalysisCache) Get(typ, id string, dst any) bool {
	data, ok, err := c.store.Get(Key(typ, id))
	if err != nil {
		c.log.Warn("cache get %s/%s: %v", typ, id, err)
		return false
	}
	if !ok {
		return false
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(dst); err != nil {
		c.log.Warn("cache entry %s/%s is unreadable, dropping it: %v", typ, id, err)
		_ = c.store.Forget(Key(typ, id))
		return false
	}
	c.log.Debug("cache hit %s %s", typ, id)
	return true
}

// Put stores value. An optional ttl overrides the cache default.
func (c *AnalysisCache) Put(typ, id string, value any, ttl ...time.Duration) error {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("failed to encode cache value %s/%s: %w", typ, id, err)
	}

	expiry := c.ttl
	if len(ttl) > 0 && ttl[0] > 0 {
		expiry = ttl[0]
	}
	return c.store.Put(Key(typ, id), buf.Bytes(), expiry)
}

// Has reports whether a live entry exists
func (c *AnalysisCache) Has(typ, id string) bool {
	_, ok, err := c.store.Get(Key(typ, id))
	return err == nil && ok
}

// Forget removes one entry
func (c *AnalysisCache) Forget(typ, id string) error {
	return c.store.Forget(Key(typ, id))
}

// Clear removes every entry of every type
func (c *AnalysisCache) Clear() error {
	return c.store.Flush()
}

// ClearType removes only the entries of typ
func (c *AnalysisCache) ClearType(typ string) error {
	return c.store.ForgetPrefix(typ + "/")
}

func mtimeID(id string) string { return id + ":mtime" }

// IsValidForFile reports whether the cached (typ, id) value was computed from
// the current version of path. When the recorded mtime is missing or differs
// the value is forgotten and the new mtime recorded; the caller recomputes
// and stores the value itself.
func (c *AnalysisCache) IsValidForFile(typ, id, path string) bool {
	current, err := fileMtime(path)
	if err != nil {
		_ = c.Forget(typ, id)
		return false
	}

	var stored string
	if c.Get(typ, mtimeID(id), &stored) && stored == current {
		return c.Has(typ, id)
	}

	c.log.Debug("cache invalidated %s %s (%s changed)", typ, id, path)
	if err := c.Forget(typ, id); err != nil {
		c.log.Warn("cache forget %s/%s: %v", typ, id, err)
	}
	if err := c.Put(typ, mtimeID(id), current); err != nil {
		c.log.Warn("cache mtime %s/%s: %v", typ, id, err)
	}
	return false
}

// StoreFileMtime records path's current mtime for (typ, id)
func (c *AnalysisCache) StoreFileMtime(typ, id, path string) error {
	current, err := fileMtime(path)
	if err != nil {
		return err
	}
	return c.Put(typ, mtimeID(id), current)
}

// Close releases the underlying store
func (c *AnalysisCache) Close() error {
	return c.store.Close()
}

func fileMtime(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}
