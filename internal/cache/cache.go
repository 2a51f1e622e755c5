// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const blobsDirName = "blobs"

// ErrClosed is returned by operations on a closed Cache.
var ErrClosed = errors.New("cache is closed")

type (
	// Cache is a content store rooted at a directory. It is safe for
	// concurrent use by multiple goroutines and by multiple processes
	// sharing the directory.
	Cache struct {
		dir      string
		maxBytes int64
		maxAge   time.Duration
		now      func() time.Time
		logger   *log.Logger

		mu      sync.RWMutex
		entries map[Signature]*Entry
		closed  bool

		fills singleflight.Group
	}

	// Option configures a Cache.
	Option func(*Cache)

	// FetchFunc writes the content for a missing signature to tmpPath.
	FetchFunc func(ctx context.Context, tmpPath string) error

	fillResult struct {
		path string
		hit  bool
	}
)

// WithMaxBytes bounds the total size of cached blobs. Zero means unbounded.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) { c.maxBytes = n }
}

// WithMaxAge evicts entries not accessed within d. Zero means no expiry.
func WithMaxAge(d time.Duration) Option {
	return func(c *Cache) { c.maxAge = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for cache activity.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Open creates the cache directory if needed and loads its index.
func Open(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache directory must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		dir:    abs,
		now:    time.Now,
		logger: log.NewWithOptions(io.Discard, log.Options{Prefix: "cache"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := os.MkdirAll(filepath.Join(abs, blobsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	entries, err := readIndex(c.indexPath())
	if err != nil {
		return nil, err
	}
	c.entries = entries
	return c, nil
}

// Dir returns the absolute cache directory.
func (c *Cache) Dir() string { return c.dir }

// Close marks the cache closed. Blobs and the index stay on disk.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Lookup returns the local path of the blob for sig and refreshes its
// last-access time. An indexed entry whose blob has disappeared is dropped
// and reported as a miss.
func (c *Cache) Lookup(sig Signature) (string, bool) {
	c.mu.RLock()
	entry, ok := c.entries[sig]
	closed := c.closed
	c.mu.RUnlock()
	if !ok || closed {
		return "", false
	}

	path := c.blobPath(sig)
	if _, err := os.Stat(path); err != nil {
		c.logger.Debug("dropping entry with missing blob", "signature", sig.Short())
		if err := c.update(func(m map[Signature]*Entry) { delete(m, sig) }); err != nil {
			c.logger.Warn("cache index update failed", "error", err)
		}
		return "", false
	}

	now := c.now()
	err := c.update(func(m map[Signature]*Entry) {
		if e, ok := m[sig]; ok {
			e.LastAccessed = now
			return
		}
		// Another process dropped it from the index; the blob is still good.
		restored := *entry
		restored.LastAccessed = now
		m[sig] = &restored
	})
	if err != nil {
		c.logger.Warn("cache index update failed", "error", err)
	}
	return path, true
}

// Store copies the file at src into the cache under sig and returns the
// blob path.
func (c *Cache) Store(sig Signature, src string) (string, error) {
	return c.StoreFrom(sig, src, "")
}

// StoreFrom is Store that records the originating location in the index.
func (c *Cache) StoreFrom(sig Signature, src, source string) (string, error) {
	if err := c.check(sig); err != nil {
		return "", err
	}
	tmp, err := c.tempFile(sig)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)
	if err := copyInto(tmp, src); err != nil {
		return "", fmt.Errorf("copy %s into cache: %w", src, err)
	}
	return c.commit(sig, tmp, source)
}

// Fill returns the blob for sig, calling fetch to produce it on a miss.
// Concurrent fills of the same signature run fetch once; the other callers
// wait and receive the same path with hit set.
func (c *Cache) Fill(ctx context.Context, sig Signature, source string, fetch FetchFunc) (path string, hit bool, err error) {
	if err := c.check(sig); err != nil {
		return "", false, err
	}
	if p, ok := c.Lookup(sig); ok {
		return p, true, nil
	}

	v, err, shared := c.fills.Do(string(sig), func() (any, error) {
		if p, ok := c.Lookup(sig); ok {
			return fillResult{path: p, hit: true}, nil
		}
		tmp, err := c.tempFile(sig)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		if err := fetch(ctx, tmp); err != nil {
			return nil, err
		}
		p, err := c.commit(sig, tmp, source)
		if err != nil {
			return nil, err
		}
		return fillResult{path: p}, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(fillResult)
	return res.path, res.hit || shared, nil
}

// Entries returns a snapshot of the index, most recently used first.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return b.LastAccessed.Compare(a.LastAccessed) })
	return out
}

// Size returns the total size of indexed blobs.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, e := range c.entries {
		total += e.Size
	}
	return total
}

// Remove drops sig from the index and deletes its blob.
func (c *Cache) Remove(sig Signature) error {
	if err := c.check(sig); err != nil {
		return err
	}
	if err := c.update(func(m map[Signature]*Entry) { delete(m, sig) }); err != nil {
		return err
	}
	if err := os.Remove(c.blobPath(sig)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// commit renames a fully written temp file into the blob location and
// records the entry. Bounds are enforced afterwards, never evicting sig.
func (c *Cache) commit(sig Signature, tmp, source string) (string, error) {
	info, err := os.Stat(tmp)
	if err != nil {
		return "", err
	}
	dst := c.blobPath(sig)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", fmt.Errorf("commit cache blob: %w", err)
	}
	rel, _ := filepath.Rel(c.dir, dst)
	entry := &Entry{
		Signature:    sig,
		Path:         filepath.ToSlash(rel),
		Size:         info.Size(),
		LastAccessed: c.now(),
		Source:       source,
	}
	if err := c.update(func(m map[Signature]*Entry) { m[sig] = entry }); err != nil {
		return "", err
	}
	c.logger.Debug("stored", "signature", sig.Short(), "size", entry.Size, "source", source)

	if c.maxBytes > 0 || c.maxAge > 0 {
		if _, err := c.prune(sig); err != nil {
			c.logger.Warn("cache prune failed", "error", err)
		}
	}
	return dst, nil
}

// update applies fn to the freshly read on-disk index under both locks,
// writes the result back, and adopts it as the in-memory view.
func (c *Cache) update(fn func(map[Signature]*Entry)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	lock, err := acquireIndexLock(filepath.Join(c.dir, lockFileName))
	if err != nil {
		return err
	}
	defer lock.release()

	entries, err := readIndex(c.indexPath())
	if err != nil {
		return err
	}
	fn(entries)
	if err := writeIndex(c.indexPath(), entries); err != nil {
		return err
	}
	c.entries = entries
	return nil
}

func (c *Cache) check(sig Signature) error {
	if valid, errs := sig.IsValid(); !valid {
		return errs[0]
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Cache) tempFile(sig Signature) (string, error) {
	dir := filepath.Dir(c.blobPath(sig))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, ".fill-"+sig.Short()+"-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	return name, f.Close()
}

func (c *Cache) blobPath(sig Signature) string {
	return filepath.Join(c.dir, blobsDirName, string(sig[:2]), string(sig))
}

func (c *Cache) indexPath() string {
	return filepath.Join(c.dir, indexFileName)
}

func copyInto(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
