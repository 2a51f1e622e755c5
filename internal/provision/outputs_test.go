// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ctb/dockstore/internal/testutil"
)

func TestProvisionOutputs_NotSucceeded(t *testing.T) {
	t.Parallel()

	events := &recorder{}
	e := New(WithEventSink(events))
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{"out": filepath.Join(t.TempDir(), "out.txt")},
		Produced{Succeeded: false, Outputs: map[string]any{"out": "/nowhere"}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 0 || len(report.Failures) != 0 || len(events.events) != 0 {
		t.Errorf("failed run provisioned something: %+v", report)
	}
}

func TestProvisionOutputs_FilesDirectoriesAndArrays(t *testing.T) {
	t.Parallel()

	run := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(run, "results", "a.txt"), "a")
	testutil.MustWriteFile(t, filepath.Join(run, "results", "sub", "b.txt"), "b")
	testutil.MustWriteFile(t, filepath.Join(run, "results", "sub", "c.txt"), "c")
	part1 := testutil.MustWriteFile(t, filepath.Join(run, "part1.txt"), "1")
	part2 := testutil.MustWriteFile(t, filepath.Join(run, "part2.txt"), "2")
	summary := testutil.MustWriteFile(t, filepath.Join(run, "summary.txt"), "sum")

	dest := t.TempDir()
	bindings := map[string]any{
		"results": map[string]any{"class": "Directory", "path": filepath.Join(dest, "results")},
		"archive": dest + "/archive/",
		"parts":   dest + "/parts/",
		"summary": map[string]any{"class": "File", "path": filepath.Join(dest, "final.txt")},
	}
	produced := Produced{Succeeded: true, Outputs: map[string]any{
		"results": map[string]any{"class": "Directory", "location": "file://" + filepath.ToSlash(filepath.Join(run, "results"))},
		"archive": map[string]any{"class": "Directory", "path": filepath.Join(run, "results")},
		"parts":   []any{part1, map[string]any{"class": "File", "path": part2}},
		"summary": summary,
	}}

	events := &recorder{}
	e := New(WithEventSink(events))
	report, err := e.ProvisionOutputs(context.Background(), bindings, produced)
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 9 {
		t.Errorf("Provisioned = %d, want 9", report.Provisioned)
	}
	if got := events.kinds()[EventUploading]; got != 9 {
		t.Errorf("Uploading events = %d, want 9", got)
	}
	if len(report.Failures) != 0 {
		t.Errorf("Failures = %v", report.Failures)
	}

	want := map[string]string{
		filepath.Join("results", "a.txt"):                   "a",
		filepath.Join("results", "sub", "b.txt"):            "b",
		filepath.Join("results", "sub", "c.txt"):            "c",
		filepath.Join("archive", "results", "a.txt"):        "a",
		filepath.Join("archive", "results", "sub", "c.txt"): "c",
		filepath.Join("parts", "part1.txt"):                 "1",
		filepath.Join("parts", "part2.txt"):                 "2",
		"final.txt":                                         "sum",
	}
	for rel, content := range want {
		if got := testutil.MustReadFile(t, filepath.Join(dest, rel)); got != content {
			t.Errorf("%s = %q, want %q", rel, got, content)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "results", "results")); err == nil {
		t.Error("directory bound to a Directory destination was nested under its own name")
	}
}

func TestProvisionOutputs_SecondariesFirst(t *testing.T) {
	t.Parallel()

	run := t.TempDir()
	bam := testutil.MustWriteFile(t, filepath.Join(run, "out.bam"), "bam")
	bai := testutil.MustWriteFile(t, filepath.Join(run, "out.bam.bai"), "bai")
	dest := t.TempDir()

	events := &recorder{}
	e := New(WithEventSink(events))
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{"aligned": filepath.Join(dest, "final.bam")},
		Produced{Succeeded: true, Outputs: map[string]any{"aligned": map[string]any{
			"class":          "File",
			"path":           bam,
			"secondaryFiles": []any{map[string]any{"class": "File", "path": bai}},
		}}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 1 {
		t.Errorf("Provisioned = %d, want 1", report.Provisioned)
	}
	if len(events.events) != 2 {
		t.Fatalf("events = %v, want 2", events.events)
	}
	if events.events[0].Source != bai || events.events[1].Source != bam {
		t.Errorf("delivery order = %v, want secondary before primary", events.events)
	}
	if got := testutil.MustReadFile(t, filepath.Join(dest, "out.bam.bai")); got != "bai" {
		t.Errorf("secondary = %q, want bai", got)
	}
}

func TestProvisionOutputs_FailedSecondaryFailsPrimary(t *testing.T) {
	t.Parallel()

	run := t.TempDir()
	bam := testutil.MustWriteFile(t, filepath.Join(run, "out.bam"), "bam")
	dest := t.TempDir()

	e := New(WithRetries(1, 0))
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{"aligned": filepath.Join(dest, "final.bam")},
		Produced{Succeeded: true, Outputs: map[string]any{"aligned": map[string]any{
			"class":          "File",
			"path":           bam,
			"secondaryFiles": []any{map[string]any{"class": "File", "path": filepath.Join(run, "missing.bai")}},
		}}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 0 || len(report.Failures) != 1 {
		t.Fatalf("report = %+v, want one failure", report)
	}
	if !errors.Is(report.Failures[0], ErrSecondaryFailed) {
		t.Errorf("failure = %v, want ErrSecondaryFailed", report.Failures[0])
	}
}

func TestProvisionOutputs_EveryFailedSecondaryReported(t *testing.T) {
	t.Parallel()

	run := t.TempDir()
	bam := testutil.MustWriteFile(t, filepath.Join(run, "out.bam"), "bam")
	bai := testutil.MustWriteFile(t, filepath.Join(run, "out.bam.bai"), "bai")
	dest := t.TempDir()

	e := New(WithRetries(1, 0))
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{"aligned": filepath.Join(dest, "final.bam")},
		Produced{Succeeded: true, Outputs: map[string]any{"aligned": map[string]any{
			"class": "File",
			"path":  bam,
			"secondaryFiles": []any{
				map[string]any{"class": "File", "path": filepath.Join(run, "missing.csi")},
				map[string]any{"class": "File", "path": bai},
				map[string]any{"class": "File", "path": filepath.Join(run, "missing.md5")},
			},
		}}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("report = %+v, want one failure", report)
	}
	msg := report.Failures[0].Error()
	for _, name := range []string{"missing.csi", "missing.md5"} {
		if !strings.Contains(msg, name) {
			t.Errorf("failure %q does not mention %s", msg, name)
		}
	}
	if got := testutil.MustReadFile(t, filepath.Join(dest, "out.bam.bai")); got != "bai" {
		t.Errorf("secondary after a failed one = %q, want bai", got)
	}
}

func TestProvisionOutputs_SkippedAndMissing(t *testing.T) {
	t.Parallel()

	run := t.TempDir()
	ok := testutil.MustWriteFile(t, filepath.Join(run, "ok.txt"), "ok")
	dest := t.TempDir()

	e := New()
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{
			"ok":      filepath.Join(dest, "ok.txt"),
			"missing": filepath.Join(dest, "missing.txt"),
			"unbound": map[string]any{"class": "File"},
		},
		Produced{Succeeded: true, Outputs: map[string]any{"ok": ok}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 1 {
		t.Errorf("Provisioned = %d, want 1", report.Provisioned)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "unbound" {
		t.Errorf("Skipped = %v, want [unbound]", report.Skipped)
	}
	if len(report.Failures) != 1 || !errors.Is(report.Failures[0], ErrOutputNotProduced) {
		t.Fatalf("Failures = %v, want ErrOutputNotProduced", report.Failures)
	}

	if err := report.Err(false); err != nil {
		t.Errorf("lenient Err() = %v, want nil after a partial success", err)
	}
	err = report.Err(true)
	var oe *OutputsError
	if !errors.As(err, &oe) || !oe.Strict {
		t.Errorf("strict Err() = %v, want *OutputsError", err)
	}
	if !errors.Is(err, ErrOutputNotProduced) {
		t.Error("OutputsError does not unwrap to its failures")
	}
}

func TestReport_Failed(t *testing.T) {
	t.Parallel()

	failure := []*TransferError{{Key: "x", Err: ErrOutputNotProduced}}
	tests := []struct {
		name   string
		report Report
		strict bool
		want   bool
	}{
		{"clean lenient", Report{Provisioned: 2}, false, false},
		{"clean strict", Report{Provisioned: 2}, true, false},
		{"partial lenient", Report{Provisioned: 1, Failures: failure}, false, false},
		{"partial strict", Report{Provisioned: 1, Failures: failure}, true, true},
		{"total lenient", Report{Failures: failure}, false, true},
		{"nothing to do", Report{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.report.Failed(tt.strict); got != tt.want {
				t.Errorf("Failed(%v) = %v, want %v", tt.strict, got, tt.want)
			}
		})
	}
}

func TestProvisionOutputs_HTTPPut(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	uploads := map[string]string{}
	types := map[string]string{}
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploads[r.URL.Path] = string(body)
		types[r.URL.Path] = r.Header.Get("Content-Type")
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	run := t.TempDir()
	a := testutil.MustWriteFile(t, filepath.Join(run, "a.json"), "{}")
	b := testutil.MustWriteFile(t, filepath.Join(run, "b.bin"), "bin")

	e := New()
	report, err := e.ProvisionOutputs(context.Background(),
		map[string]any{"files": srv.URL + "/bucket/?X-Amz-Signature=abc"},
		Produced{Succeeded: true, Outputs: map[string]any{"files": []any{a, b}}})
	if err != nil {
		t.Fatalf("ProvisionOutputs() error = %v", err)
	}
	if report.Provisioned != 2 {
		t.Errorf("Provisioned = %d, want 2 (failures %v)", report.Provisioned, report.Failures)
	}

	paths := make([]string, 0, len(uploads))
	for p := range uploads {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "/bucket/a.json" || paths[1] != "/bucket/b.bin" {
		t.Errorf("uploaded paths = %v", paths)
	}
	if types["/bucket/a.json"] != "application/json" {
		t.Errorf("Content-Type(a.json) = %q", types["/bucket/a.json"])
	}
	if types["/bucket/b.bin"] != "application/octet-stream" {
		t.Errorf("Content-Type(b.bin) = %q", types["/bucket/b.bin"])
	}
	for _, q := range queries {
		if q != "" {
			t.Errorf("member upload carried the directory's query %q", q)
		}
	}
}
