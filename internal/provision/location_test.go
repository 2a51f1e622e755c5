// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"path/filepath"
	"testing"
)

func TestParseLocation(t *testing.T) {
	t.Parallel()

	base := filepath.FromSlash("/data/jobs")
	tests := []struct {
		raw        string
		wantScheme string
		wantPath   string
		wantLocal  bool
	}{
		{"reads.bam", SchemeLocal, filepath.Join(base, "reads.bam"), true},
		{"/abs/reads.bam", SchemeLocal, filepath.FromSlash("/abs/reads.bam"), true},
		{"file:///abs/reads.bam", "file", filepath.FromSlash("/abs/reads.bam"), true},
		{"https://example.com/reads.bam", "https", "", false},
		{"HTTP://example.com/reads.bam", "http", "", false},
		{"s3://bucket/key", "s3", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			loc := ParseLocation(tt.raw, base)
			if loc.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %q, want %q", loc.Scheme, tt.wantScheme)
			}
			if loc.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", loc.Path, tt.wantPath)
			}
			if loc.IsLocal() != tt.wantLocal {
				t.Errorf("IsLocal() = %v, want %v", loc.IsLocal(), tt.wantLocal)
			}
			if loc.Base() != "reads.bam" && loc.Base() != "key" {
				t.Errorf("Base() = %q", loc.Base())
			}
		})
	}
}

func TestLocation_JoinAndDir(t *testing.T) {
	t.Parallel()

	remote := ParseLocation("https://example.com/out/run1/?sig=x", "")
	joined := remote.Join("a.txt")
	if joined.Raw != "https://example.com/out/run1/a.txt" {
		t.Errorf("Join() = %s", joined.Raw)
	}
	if dir := joined.Dir(); dir.Raw != "https://example.com/out/run1" {
		t.Errorf("Dir() = %s", dir.Raw)
	}

	local := ParseLocation(filepath.FromSlash("/out/run1"), "")
	if got := local.Join("a.txt").Path; got != filepath.FromSlash("/out/run1/a.txt") {
		t.Errorf("local Join() = %s", got)
	}
	if got := local.Dir().Path; got != filepath.FromSlash("/out") {
		t.Errorf("local Dir() = %s", got)
	}

	file := ParseLocation("file:///out/run1", "")
	if got := file.Join("a.txt").Raw; got != "file:///out/run1/a.txt" {
		t.Errorf("file Join() = %s", got)
	}
}
