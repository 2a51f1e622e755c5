// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// FakeEngine writes an executable POSIX shell script named name into dir
// and returns its path. Tests use it in place of cwltool or Cromwell. The
// test is skipped on Windows, where the scripts cannot run.
func FakeEngine(t testing.TB, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	path := filepath.Join(dir, name)
	MustMkdirAll(t, dir, 0o755)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write fake engine %s: %v", path, err)
	}
	return path
}
