// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ctb/dockstore/internal/testutil"
)

func openTestCache(t *testing.T, opts ...Option) (*Cache, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Time{})
	c, err := Open(t.TempDir(), append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c, clock
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	return testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "src.bin"), content)
}

func TestNewSignature(t *testing.T) {
	t.Parallel()

	a := NewSignature("https://example.org/a.bam", `"etag-1"`)
	if valid, errs := a.IsValid(); !valid {
		t.Fatalf("NewSignature() produced invalid signature: %v", errs)
	}
	if a != NewSignature("https://example.org/a.bam", `"etag-1"`) {
		t.Error("NewSignature() is not deterministic")
	}
	if NewSignature("ab", "c") == NewSignature("a", "bc") {
		t.Error("part boundaries are not significant")
	}
	if valid, errs := Signature("../etc").IsValid(); valid || !errors.Is(errs[0], ErrInvalidSignature) {
		t.Errorf("IsValid() accepted a path-like signature")
	}
}

func TestStoreAndLookup(t *testing.T) {
	t.Parallel()

	c, clock := openTestCache(t)
	sig := NewSignature("file-a")

	if _, ok := c.Lookup(sig); ok {
		t.Fatal("Lookup() hit on empty cache")
	}

	path, err := c.StoreFrom(sig, writeSource(t, "hello"), "https://example.org/a")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	want := filepath.Join(c.Dir(), "blobs", string(sig[:2]), string(sig))
	if path != want {
		t.Errorf("Store() path = %q, want %q", path, want)
	}
	if got := testutil.MustReadFile(t, path); got != "hello" {
		t.Errorf("blob content = %q, want hello", got)
	}

	clock.Advance(time.Hour)
	got, ok := c.Lookup(sig)
	if !ok || got != path {
		t.Fatalf("Lookup() = (%q, %v), want (%q, true)", got, ok, path)
	}
	entries := c.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() = %d entries, want 1", len(entries))
	}
	if !entries[0].LastAccessed.Equal(clock.Now()) {
		t.Errorf("LastAccessed = %v, want refreshed to %v", entries[0].LastAccessed, clock.Now())
	}
	if entries[0].Size != 5 || entries[0].Source != "https://example.org/a" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestLookup_MissingBlobIsMiss(t *testing.T) {
	t.Parallel()

	c, _ := openTestCache(t)
	sig := NewSignature("gone")
	path, err := c.Store(sig, writeSource(t, "x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(sig); ok {
		t.Fatal("Lookup() hit for deleted blob")
	}
	if n := len(c.Entries()); n != 0 {
		t.Errorf("entry not dropped, %d entries remain", n)
	}
}

func TestFill(t *testing.T) {
	t.Parallel()

	c, _ := openTestCache(t)
	sig := NewSignature("remote")
	fetch := func(_ context.Context, tmp string) error {
		return os.WriteFile(tmp, []byte("payload"), 0o644)
	}

	path, hit, err := c.Fill(context.Background(), sig, "https://example.org/r", fetch)
	if err != nil || hit {
		t.Fatalf("first Fill() = (%q, %v, %v), want miss", path, hit, err)
	}
	again, hit, err := c.Fill(context.Background(), sig, "https://example.org/r", func(context.Context, string) error {
		t.Error("fetch called on hit")
		return nil
	})
	if err != nil || !hit || again != path {
		t.Errorf("second Fill() = (%q, %v, %v), want hit at %q", again, hit, err, path)
	}
}

func TestFill_FetchErrorLeavesNoEntry(t *testing.T) {
	t.Parallel()

	c, _ := openTestCache(t)
	sig := NewSignature("broken")
	boom := errors.New("network down")

	_, _, err := c.Fill(context.Background(), sig, "", func(_ context.Context, tmp string) error {
		_ = os.WriteFile(tmp, []byte("partial"), 0o644)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Fill() error = %v, want %v", err, boom)
	}
	if _, ok := c.Lookup(sig); ok {
		t.Error("failed fill left a cache entry")
	}
	leftovers, _ := filepath.Glob(filepath.Join(c.Dir(), "blobs", string(sig[:2]), ".fill-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFill_ConcurrentSameSignatureFetchesOnce(t *testing.T) {
	t.Parallel()

	c, _ := openTestCache(t)
	sig := NewSignature("shared")
	var calls atomic.Int32
	fetch := func(_ context.Context, tmp string) error {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return os.WriteFile(tmp, []byte("shared"), 0o644)
	}

	const workers = 8
	var wg sync.WaitGroup
	paths := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			paths[i], _, errs[i] = c.Fill(context.Background(), sig, "", fetch)
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
	for i := range workers {
		if errs[i] != nil || paths[i] != paths[0] {
			t.Errorf("worker %d: (%q, %v), want %q", i, paths[i], errs[i], paths[0])
		}
	}
}

func TestIndex_SharedBetweenInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	sigA, sigB := NewSignature("a"), NewSignature("b")
	if _, err := a.Store(sigA, writeSource(t, "aaa")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Store(sigB, writeSource(t, "bb")); err != nil {
		t.Fatal(err)
	}

	// b re-read the index before writing, so a's entry survived.
	if n := len(b.Entries()); n != 2 {
		t.Errorf("b sees %d entries, want 2", n)
	}
	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Lookup(sigA); !ok {
		t.Error("entry from first instance lost")
	}
	if reopened.Size() != 5 {
		t.Errorf("Size() = %d, want 5", reopened.Size())
	}
}

func TestOpen_CorruptIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, indexFileName), "{not json")
	_, err := Open(dir)
	if err == nil || !strings.Contains(err.Error(), "parse cache index") {
		t.Errorf("Open() error = %v, want parse error", err)
	}
}

func TestRemoveAndClose(t *testing.T) {
	t.Parallel()

	c, _ := openTestCache(t)
	sig := NewSignature("rm")
	path, err := c.Store(sig, writeSource(t, "x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Remove(sig); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("blob still present after Remove()")
	}

	testutil.MustClose(t, c)
	if _, err := c.Store(sig, writeSource(t, "x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Store() after Close error = %v, want ErrClosed", err)
	}
}
