// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	indexFileName = "index.json"
	lockFileName  = "index.lock"
	indexVersion  = 1
)

type (
	// Entry describes one cached blob.
	Entry struct {
		Signature    Signature `json:"signature"`
		Path         string    `json:"path"`
		Size         int64     `json:"size"`
		LastAccessed time.Time `json:"last_accessed"`
		Source       string    `json:"source,omitempty"`
	}

	indexFile struct {
		Version int      `json:"version"`
		Entries []*Entry `json:"entries"`
	}
)

// readIndex loads the on-disk index. A missing file is an empty index.
func readIndex(path string) (map[Signature]*Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[Signature]*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache index: %w", err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cache index %s: %w", path, err)
	}
	if f.Version != indexVersion {
		return nil, fmt.Errorf("cache index %s: unsupported version %d", path, f.Version)
	}
	entries := make(map[Signature]*Entry, len(f.Entries))
	for _, e := range f.Entries {
		if valid, _ := e.Signature.IsValid(); valid {
			entries[e.Signature] = e
		}
	}
	return entries, nil
}

// writeIndex replaces the index file through a temp file in the same
// directory.
func writeIndex(path string, entries map[Signature]*Entry) error {
	f := indexFile{Version: indexVersion, Entries: make([]*Entry, 0, len(entries))}
	for _, e := range entries {
		f.Entries = append(f.Entries, e)
	}
	slices.SortFunc(f.Entries, func(a, b *Entry) int {
		return strings.Compare(string(a.Signature), string(b.Signature))
	})
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache index: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
