// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalTransport copies within the local filesystem.
type LocalTransport struct{}

// Stat reports size and modification time; the version tag combines both.
func (LocalTransport) Stat(_ context.Context, loc Location) (Info, error) {
	info, err := os.Stat(loc.Path)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Version: fmt.Sprintf("%d-%d", info.Size(), info.ModTime().UnixNano()),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
	}, nil
}

// Fetch copies a file or a directory tree to dst.
func (LocalTransport) Fetch(ctx context.Context, loc Location, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(loc.Path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return CopyDir(loc.Path, dst)
	}
	return CopyFile(loc.Path, dst)
}

// Put copies src to the destination path, creating parent directories.
func (LocalTransport) Put(ctx context.Context, src string, loc Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(loc.Path), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	return CopyFile(src, loc.Path)
}
