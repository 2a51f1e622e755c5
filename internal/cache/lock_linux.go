// SPDX-License-Identifier: MPL-2.0

//go:build linux

package cache

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// indexLock is an exclusive flock on the cache's index.lock file. The kernel
// drops it when the descriptor closes, so a crashed process never leaves
// the cache locked.
type indexLock struct {
	file *os.File
}

func acquireIndexLock(path string) (*indexLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &indexLock{file: f}, nil
}

func (l *indexLock) release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}
