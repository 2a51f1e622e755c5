// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ctb/dockstore/internal/cache"
	"github.com/ctb/dockstore/internal/testutil"
)

func TestStageInputs_LocalFileWithSecondaries(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "reads.bam"), "bam")
	testutil.MustWriteFile(t, filepath.Join(src, "reads.bam.bai"), "bai")
	docPath := testutil.MustWriteFile(t, filepath.Join(src, "job.json"), `{
  "reads": {
    "class": "File",
    "location": "reads.bam",
    "secondaryFiles": [{"class": "File", "path": "reads.bam.bai"}]
  },
  "threads": 4,
  "report": {"class": "File", "path": "/tmp/out/report.txt"}
}`)

	events := &recorder{}
	e := New(WithWorkDir(t.TempDir()), WithSkipKeys("report"), WithEventSink(events))
	staged, err := e.StageInputs(context.Background(), docPath)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}

	reads, ok := staged.Document["reads"].(map[string]any)
	if !ok {
		t.Fatalf("reads = %#v, want object", staged.Document["reads"])
	}
	path, _ := reads["path"].(string)
	if got := testutil.MustReadFile(t, path); got != "bam" {
		t.Errorf("staged primary = %q, want %q", got, "bam")
	}
	if _, ok := reads["location"]; ok {
		t.Error("staged object still carries location")
	}

	secs, _ := reads["secondaryFiles"].([]any)
	if len(secs) != 1 {
		t.Fatalf("len(secondaryFiles) = %d, want 1", len(secs))
	}
	secPath, _ := secs[0].(map[string]any)["path"].(string)
	if filepath.Dir(secPath) != filepath.Dir(path) {
		t.Errorf("secondary staged in %s, primary in %s", filepath.Dir(secPath), filepath.Dir(path))
	}
	if got := testutil.MustReadFile(t, secPath); got != "bai" {
		t.Errorf("staged secondary = %q, want %q", got, "bai")
	}

	if staged.Document["threads"] != float64(4) {
		t.Errorf("threads = %#v, want 4", staged.Document["threads"])
	}
	if _, ok := staged.Document["report"]; ok {
		t.Error("skip key must not appear in staged document")
	}
	if _, ok := staged.Bindings["report"]; !ok {
		t.Error("skip key value missing from Bindings")
	}

	written, err := LoadDocument(staged.DocumentPath)
	if err != nil {
		t.Fatalf("LoadDocument(staged) error = %v", err)
	}
	if _, ok := written["reads"]; !ok {
		t.Error("written document lacks reads")
	}

	if n := len(events.events); n != 0 {
		t.Errorf("local copies emitted %d events, want 0", n)
	}
}

func TestStageInputs_FileKeys(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "data.txt"), "payload")
	docPath := testutil.MustWriteFile(t, filepath.Join(src, "job.json"),
		`{"wf.reads": "data.txt", "wf.label": "data.txt", "wf.many": ["data.txt"]}`)

	e := New(WithWorkDir(t.TempDir()), WithFileKeys("wf.reads", "wf.many"))
	staged, err := e.StageInputs(context.Background(), docPath)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}

	reads, _ := staged.Document["wf.reads"].(string)
	if reads == "data.txt" || testutil.MustReadFile(t, reads) != "payload" {
		t.Errorf("wf.reads = %q, want staged copy", reads)
	}
	if staged.Document["wf.label"] != "data.txt" {
		t.Errorf("wf.label = %#v, want untouched string", staged.Document["wf.label"])
	}
	many, _ := staged.Document["wf.many"].([]any)
	if len(many) != 1 || many[0] == "data.txt" {
		t.Errorf("wf.many = %#v, want one staged path", many)
	}
	if len(staged.Tasks) != 2 {
		t.Errorf("len(Tasks) = %d, want 2", len(staged.Tasks))
	}
}

func TestStageInputs_RemoteUsesCache(t *testing.T) {
	t.Parallel()

	srv, gets := fileServer(t, `"v1"`, "ACGT")
	docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "job.yaml"),
		"ref:\n  class: File\n  location: "+srv.URL+"/data/ref.fa\n")

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer testutil.MustClose(t, c)

	events := &recorder{}
	e := New(WithWorkDir(t.TempDir()), WithCache(c), WithEventSink(events))

	for range 2 {
		staged, err := e.StageInputs(context.Background(), docPath)
		if err != nil {
			t.Fatalf("StageInputs() error = %v", err)
		}
		ref, _ := staged.Document["ref"].(map[string]any)
		path, _ := ref["path"].(string)
		if filepath.Base(path) != "ref.fa" {
			t.Errorf("staged name = %s, want ref.fa", filepath.Base(path))
		}
		if got := testutil.MustReadFile(t, path); got != "ACGT" {
			t.Errorf("staged content = %q, want ACGT", got)
		}
	}

	if n := gets.Load(); n != 1 {
		t.Errorf("GET count = %d, want 1", n)
	}
	kinds := events.kinds()
	if kinds[EventDownloading] != 1 || kinds[EventCacheHit] != 1 {
		t.Errorf("events = %v, want one download and one cache hit", kinds)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("cache entries = %d, want 1", len(c.Entries()))
	}
}

func TestStageInputs_WritesToStagedCopyDoNotReachCache(t *testing.T) {
	t.Parallel()

	srv, _ := fileServer(t, `"v1"`, "ACGT")
	docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "job.yaml"),
		"ref:\n  class: File\n  location: "+srv.URL+"/ref.fa\n")

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer testutil.MustClose(t, c)

	e := New(WithWorkDir(t.TempDir()), WithCache(c))
	stagedPath := func() string {
		t.Helper()
		staged, err := e.StageInputs(context.Background(), docPath)
		if err != nil {
			t.Fatalf("StageInputs() error = %v", err)
		}
		ref, _ := staged.Document["ref"].(map[string]any)
		path, _ := ref["path"].(string)
		return path
	}

	first := stagedPath()
	if err := os.WriteFile(first, []byte("CORRUPTED"), 0o644); err != nil {
		t.Fatalf("overwrite staged file: %v", err)
	}

	second := stagedPath()
	if got := testutil.MustReadFile(t, second); got != "ACGT" {
		t.Errorf("second staged content = %q, want ACGT", got)
	}
	blob, ok := c.Lookup(cache.NewSignature(srv.URL+"/ref.fa", `"v1"`))
	if !ok {
		t.Fatal("cache lost the entry")
	}
	if got := testutil.MustReadFile(t, blob); got != "ACGT" {
		t.Errorf("cached blob = %q, want ACGT", got)
	}
}

func TestStageInputs_RemoteWithoutVersionBypassesCache(t *testing.T) {
	t.Parallel()

	srv, gets := fileServer(t, "", "ACGT")
	docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "job.json"),
		`{"ref": {"class": "File", "location": "`+srv.URL+`/ref.fa"}}`)

	c, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	defer testutil.MustClose(t, c)

	e := New(WithWorkDir(t.TempDir()), WithCache(c))
	for range 2 {
		if _, err := e.StageInputs(context.Background(), docPath); err != nil {
			t.Fatalf("StageInputs() error = %v", err)
		}
	}
	if n := gets.Load(); n != 2 {
		t.Errorf("GET count = %d, want 2", n)
	}
	if len(c.Entries()) != 0 {
		t.Errorf("cache entries = %d, want 0", len(c.Entries()))
	}
}

func TestStageInputs_DirectoryLiteral(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "a.txt"), "a")
	testutil.MustWriteFile(t, filepath.Join(src, "b.txt"), "b")
	docPath := testutil.MustWriteFile(t, filepath.Join(src, "job.json"), `{
  "bundle": {
    "class": "Directory",
    "basename": "bundle",
    "listing": [
      {"class": "File", "location": "a.txt"},
      {"class": "File", "location": "b.txt"}
    ]
  },
  "note": {"class": "File", "contents": "inline"}
}`)

	e := New(WithWorkDir(t.TempDir()))
	staged, err := e.StageInputs(context.Background(), docPath)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}

	bundle, _ := staged.Document["bundle"].(map[string]any)
	dir, _ := bundle["path"].(string)
	if filepath.Base(dir) != "bundle" {
		t.Errorf("directory path = %s, want basename bundle", dir)
	}
	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not staged into directory: %v", name, err)
		}
	}
	note, _ := staged.Document["note"].(map[string]any)
	if note["contents"] != "inline" {
		t.Errorf("file literal = %#v, want untouched", note)
	}
}

func TestStageInputs_LocalDirectory(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(src, "refs", "chr1.fa"), ">chr1")
	docPath := testutil.MustWriteFile(t, filepath.Join(src, "job.json"),
		`{"refs": {"class": "Directory", "location": "refs", "listing": []}}`)

	e := New(WithWorkDir(t.TempDir()))
	staged, err := e.StageInputs(context.Background(), docPath)
	if err != nil {
		t.Fatalf("StageInputs() error = %v", err)
	}
	refs, _ := staged.Document["refs"].(map[string]any)
	dir, _ := refs["path"].(string)
	if got := testutil.MustReadFile(t, filepath.Join(dir, "chr1.fa")); got != ">chr1" {
		t.Errorf("chr1.fa = %q", got)
	}
	if _, ok := refs["listing"]; ok {
		t.Error("copied directory kept its listing")
	}
}

func TestStageInputs_MissingSource(t *testing.T) {
	t.Parallel()

	docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "job.json"),
		`{"reads": {"class": "File", "path": "nope.bam"}}`)

	e := New(WithWorkDir(t.TempDir()), WithRetries(3, 0))
	_, err := e.StageInputs(context.Background(), docPath)
	if err == nil {
		t.Fatal("StageInputs() error = nil, want error")
	}
	if !IsTransferError(err) {
		t.Errorf("error %T is not a transfer error", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("errors.Is(err, fs.ErrNotExist) = false: %v", err)
	}
}

func TestStageInputs_ReportsEveryFailedTask(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "present.txt"), "here")
	testutil.MustWriteFile(t, filepath.Join(dir, "ref.fa"), ">chr1")
	docPath := testutil.MustWriteFile(t, filepath.Join(dir, "job.json"), `{
  "a": {"class": "File", "path": "missing-a.txt"},
  "b": {"class": "File", "path": "missing-b.txt"},
  "c": {"class": "File", "path": "present.txt"},
  "d": {"class": "File", "path": "ref.fa", "secondaryFiles": [
    {"class": "File", "path": "ref.fa.fai"},
    {"class": "File", "path": "ref.fa.dict"}
  ]}
}`)

	e := New(WithWorkDir(t.TempDir()), WithRetries(1, 0), WithConcurrency(1))
	staged, err := e.StageInputs(context.Background(), docPath)
	if err == nil {
		t.Fatal("StageInputs() error = nil, want error")
	}

	var failed []string
	for _, part := range err.(interface{ Unwrap() []error }).Unwrap() {
		for _, inner := range flatten(part) {
			var te *TransferError
			if errors.As(inner, &te) {
				failed = append(failed, filepath.Base(te.Source))
			}
		}
	}
	slices.Sort(failed)
	want := []string{"missing-a.txt", "missing-b.txt", "ref.fa.dict", "ref.fa.fai"}
	if !slices.Equal(failed, want) {
		t.Errorf("failed sources = %v, want %v", failed, want)
	}

	c, _ := staged.Document["c"].(map[string]any)
	path, _ := c["path"].(string)
	if got := testutil.MustReadFile(t, path); got != "here" {
		t.Errorf("sibling of failed tasks was not staged: %q", got)
	}
}

// flatten expands joined errors one level.
func flatten(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

func TestStageInputs_InvalidDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"not an object", "job.json", `["a"]`},
		{"broken yaml", "job.yaml", "a: [\n"},
		{"object without location", "job.json", `{"x": {"class": "File"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), tt.file), tt.content)
			e := New(WithWorkDir(t.TempDir()))
			_, err := e.StageInputs(context.Background(), docPath)
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("StageInputs() error = %v, want document error", err)
			}
		})
	}
}

func TestStageInputs_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	docPath := testutil.MustWriteFile(t, filepath.Join(t.TempDir(), "job.json"),
		`{"x": {"class": "File", "location": "s3://bucket/key"}}`)
	e := New(WithWorkDir(t.TempDir()))
	_, err := e.StageInputs(context.Background(), docPath)
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("StageInputs() error = %v, want ErrUnsupportedScheme", err)
	}
}
