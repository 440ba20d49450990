// Package dcache keeps exported documents on disk keyed by the sha256 of
// the container bytes, so a rescan of unchanged files skips decoding and
// probing.
package dcache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"necroverse/internal/export"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Cache is a directory of msgpack payloads. A nil *Cache is a valid
// disabled cache. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Payload is what one entry stores.
type Payload struct {
	Schema    uint16
	DocSchema int
	Probed    bool
	Stored    time.Time
	Document  *export.Document
}

// Open returns a cache in dir, or in $XDG_CACHE_HOME/app (falling back to
// ~/.cache/app) when dir is empty.
func Open(dir, app string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir is the cache root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Cache) pathFor(key [32]byte) string {
	return filepath.Join(c.dir, "docs", hex.EncodeToString(key[:])+".mp")
}

// Put writes doc under key, replacing any earlier entry atomically.
func (c *Cache) Put(key [32]byte, doc *export.Document, probed bool) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	enc := msgpack.NewEncoder(f)
	enc.SetCustomStructTag("json")
	payload := Payload{Schema: schemaVersion, DocSchema: export.Schema, Probed: probed, Stored: time.Now().UTC(), Document: doc}
	if err := enc.Encode(&payload); err != nil {
		f.Close()
		return fmt.Errorf("dcache: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

// Get returns the entry for key. Entries written by another schema, or
// without a probe when wantProbe is set, are misses.
func (c *Cache) Get(key [32]byte, wantProbe bool) (*export.Document, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	dec.SetCustomStructTag("json")
	var payload Payload
	if err := dec.Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("dcache: decode %s: %w", f.Name(), err)
	}
	if payload.Schema != schemaVersion || payload.DocSchema != export.Schema || payload.Document == nil {
		return nil, false, nil
	}
	if wantProbe && !payload.Probed {
		return nil, false, nil
	}
	return payload.Document, true, nil
}

// DropAll removes every entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// rename first so a concurrent process never sees a half-deleted tree
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
