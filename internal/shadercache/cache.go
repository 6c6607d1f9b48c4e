// Package shadercache caches compiled kernels.
//
// Entries are keyed by an xxh3-128 hash of the preprocessed source, the
// entry point and the defines. A bounded in-memory LRU sits in front of an
// optional directory of compressed entries (zstd or lz4), each carrying an
// xxh3-64 checksum of its code. Entries that fail the checksum are treated
// as misses and rewritten on the next store.
//
//	c, err := shadercache.New(shadercache.Options{Dir: dir, Codec: shadercache.CodecZstd})
//	compiler.Cache = c
package shadercache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/gogpu/uavcheck/gpucore"
	"github.com/gogpu/uavcheck/internal/logging"
)

// DefaultEntries is the default capacity of the memory tier.
const DefaultEntries = 64

var logger logging.Logger

func slogger() *slog.Logger { return logger.Get() }

// SetLogger sets the logger used for cache diagnostics. Nil disables logging.
func SetLogger(l *slog.Logger) { logger.Set(l) }

// Key identifies a compiled kernel.
type Key struct {
	Hi, Lo uint64
}

// String returns the key as 32 hex digits.
func (k Key) String() string {
	return fmt.Sprintf("%016x%016x", k.Hi, k.Lo)
}

// KeyFor hashes the inputs of a compilation.
func KeyFor(source []byte, entryPoint string, defines []gpucore.Define) Key {
	buf := make([]byte, 0, len(source)+len(entryPoint)+16*len(defines)+2)
	buf = append(buf, entryPoint...)
	buf = append(buf, 0)
	for _, d := range defines {
		buf = append(buf, d.Name...)
		buf = append(buf, '=')
		buf = append(buf, d.Value...)
		buf = append(buf, 0)
	}
	buf = append(buf, 0)
	buf = append(buf, source...)
	h := xxh3.Hash128(buf)
	return Key{Hi: h.Hi, Lo: h.Lo}
}

// Options configures a Cache.
type Options struct {
	// Entries bounds the memory tier. Zero selects DefaultEntries.
	Entries int

	// Dir enables the disk tier when non-empty.
	Dir string

	// Codec compresses disk entries.
	Codec Codec
}

// Stats reports cache activity.
type Stats struct {
	Hits      uint64
	DiskHits  uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// Cache is a two-tier compiled kernel cache. It implements shader.Cache.
// Cache is safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	mem   *lru
	dir   string
	codec Codec

	hits      atomic.Uint64
	diskHits  atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New returns a cache configured by opts.
func New(opts Options) (*Cache, error) {
	if opts.Entries < 0 {
		return nil, fmt.Errorf("shadercache: negative entry limit %d", opts.Entries)
	}
	if opts.Codec > CodecLZ4 {
		return nil, fmt.Errorf("shadercache: unknown codec %d", opts.Codec)
	}
	entries := opts.Entries
	if entries == 0 {
		entries = DefaultEntries
	}
	return &Cache{
		mem:   newLRU(entries),
		dir:   opts.Dir,
		codec: opts.Codec,
	}, nil
}

// Load returns the cached code for the given compilation inputs.
func (c *Cache) Load(source []byte, entryPoint string, defines []gpucore.Define) ([]byte, bool) {
	k := KeyFor(source, entryPoint, defines)

	c.mu.Lock()
	code, ok := c.mem.get(k)
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
		return code, true
	}

	if c.dir != "" {
		code, err := readEntry(c.dir, k)
		switch {
		case err == nil:
			c.diskHits.Add(1)
			c.remember(k, code)
			return code, true
		case errors.Is(err, fs.ErrNotExist):
		default:
			slogger().Warn("shadercache: discarding entry", "key", k.String(), "err", err)
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Store records code for the given compilation inputs. Disk write failures
// are logged and otherwise ignored.
func (c *Cache) Store(source []byte, entryPoint string, defines []gpucore.Define, code []byte) {
	k := KeyFor(source, entryPoint, defines)
	c.remember(k, code)
	if c.dir == "" {
		return
	}
	if err := writeEntry(c.dir, k, c.codec, code); err != nil {
		slogger().Warn("shadercache: write failed", "key", k.String(), "err", err)
		return
	}
	slogger().Debug("shadercache: stored", "key", k.String(), "codec", c.codec.String(), "bytes", len(code))
}

func (c *Cache) remember(k Key, code []byte) {
	c.mu.Lock()
	n := c.mem.put(k, code)
	c.mu.Unlock()
	c.evictions.Add(uint64(n))
}

// Stats returns cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := c.mem.len()
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		DiskHits:  c.diskHits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   n,
	}
}
