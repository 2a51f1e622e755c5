// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ctb/dockstore/internal/testutil"
)

func TestFilesystemPath_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path FilesystemPath
		want bool
	}{
		{"absolute path", "/var/cache/dockstore", true},
		{"relative path", "work", true},
		{"home path", "~/.dockstore", true},
		{"empty is invalid", "", false},
		{"whitespace only is invalid", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			valid, errs := tt.path.IsValid()
			if valid != tt.want {
				t.Fatalf("FilesystemPath(%q).IsValid() = %v, want %v", tt.path, valid, tt.want)
			}
			if !valid && !errors.Is(errs[0], ErrInvalidFilesystemPath) {
				t.Errorf("error does not wrap ErrInvalidFilesystemPath: %v", errs[0])
			}
		})
	}
}

func TestFilesystemPath_Expand(t *testing.T) {
	home := t.TempDir()
	restore := testutil.SetHomeDir(t, home)
	defer restore()

	got, err := FilesystemPath("~/.dockstore/cache").Expand()
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if want := filepath.Join(home, ".dockstore", "cache"); got != want {
		t.Errorf("Expand() = %q, want %q", got, want)
	}

	if _, err := FilesystemPath("").Expand(); !errors.Is(err, ErrInvalidFilesystemPath) {
		t.Errorf("Expand(\"\") error = %v, want ErrInvalidFilesystemPath", err)
	}
}
