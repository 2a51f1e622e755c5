// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

const (
	cwlTool = `cwlVersion: v1.0
class: CommandLineTool
baseCommand: md5sum
inputs:
  input_file:
    type: File
    inputBinding:
      position: 1
outputs:
  output_file:
    type: File
    outputBinding:
      glob: md5sum.txt
stdout: md5sum.txt
`
	wdlWorkflow = `task hello {
  String name

  command {
    echo 'hello ${name}!'
  }
  output {
    File response = stdout()
  }
}

workflow test {
  call hello
  output {
    File out = hello.response
    Array[File] extra = []
  }
}
`
	bothMarkers = "cwlVersion: v1.0\nworkflow test {\n}\n"
	noMarkers   = "hello world\nthis is not a workflow\n"
)

func TestClassifyFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		content   string
		override  Format
		format    Format
		reason    Reason
		contentIs Format
		notes     []Note
	}{
		{name: "cwl extension and content", path: "tool.cwl", content: cwlTool, format: FormatCWL},
		{name: "yaml extension is cwl", path: "tool.YAML", content: cwlTool, format: FormatCWL},
		{name: "wdl extension and content", path: "hello.wdl", content: wdlWorkflow, format: FormatWDL},
		{name: "upper case extension", path: "hello.WDL", content: wdlWorkflow, format: FormatWDL},
		{
			name: "cwl content with wdl extension", path: "wrongExtcwl.wdl", content: cwlTool,
			reason: ReasonAmbiguous, contentIs: FormatCWL,
		},
		{
			name: "wdl content with cwl extension", path: "wrongExtwdl.cwl", content: wdlWorkflow,
			reason: ReasonAmbiguous, contentIs: FormatWDL,
		},
		{
			name: "override fixes wrong extension", path: "wrongExtcwl.wdl", content: cwlTool,
			override: FormatCWL, format: FormatCWL, contentIs: FormatCWL, notes: []Note{NoteWrongExtension},
		},
		{
			name: "override contradicts content", path: "wrongExtcwl.wdl", content: cwlTool,
			override: FormatWDL, format: FormatWDL, reason: ReasonWrongExtensionForced, contentIs: FormatCWL,
		},
		{
			name: "override on file without extension", path: "hello", content: wdlWorkflow,
			override: FormatWDL, format: FormatWDL, contentIs: FormatWDL, notes: []Note{NoteMissingExtension},
		},
		{
			name: "override with no content hint", path: "random.txt", content: noMarkers,
			override: FormatCWL, format: FormatCWL, notes: []Note{NoteWrongExtension},
		},
		{
			name: "no extension content decides", path: "hello", content: wdlWorkflow,
			format: FormatWDL, contentIs: FormatWDL, notes: []Note{NoteMissingExtension},
		},
		{
			name: "extension only", path: "random.cwl", content: noMarkers,
			format: FormatCWL, notes: []Note{NoteExtensionOnly},
		},
		{name: "nothing matches", path: "random", content: noMarkers, reason: ReasonInvalid},
		{name: "unknown extension nothing matches", path: "hello.txt", content: noMarkers, reason: ReasonInvalid},
		{name: "no extension both markers", path: "mixed", content: bothMarkers, reason: ReasonNoExtensionNoOverride},
		{
			name: "extension with both markers", path: "mixed.wdl", content: bothMarkers,
			format: FormatWDL, notes: []Note{NoteExtensionOnly},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &File{Path: tt.path, Extension: lowerExt(tt.path), Content: []byte(tt.content)}
			res := ClassifyFile(f, tt.override)

			if res.Format != tt.format {
				t.Errorf("Format = %q, want %q", res.Format, tt.format)
			}
			if res.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", res.Reason, tt.reason)
			}
			if res.ContentFormat != tt.contentIs {
				t.Errorf("ContentFormat = %q, want %q", res.ContentFormat, tt.contentIs)
			}
			if !slices.Equal(res.Notes, tt.notes) {
				t.Errorf("Notes = %v, want %v", res.Notes, tt.notes)
			}
			if got := res.Err() == nil; got != (tt.reason == ReasonNone) {
				t.Errorf("Err() == nil is %v, want %v", got, tt.reason == ReasonNone)
			}
		})
	}
}

func TestClassify_ReadFailure(t *testing.T) {
	t.Parallel()

	res := Classify(filepath.Join(t.TempDir(), "missing.cwl"), "")
	if res.Reason != ReasonInvalid {
		t.Fatalf("Reason = %q, want %q", res.Reason, ReasonInvalid)
	}
	err := res.Err()
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("errors.Is(err, ErrInvalidEntry) = false for %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("read cause not carried: %v", err)
	}
}

func TestClassify_FromDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "Dockstore.cwl")
	if err := os.WriteFile(path, []byte(cwlTool), 0o644); err != nil {
		t.Fatal(err)
	}
	res := Classify(path, "")
	if !res.Resolved() || res.Format != FormatCWL {
		t.Fatalf("Classify() = %+v, want resolved CWL", res)
	}
	if res.Degraded() {
		t.Error("Degraded() = true for extension and content agreement")
	}
}

func TestClassificationError_Messages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason   Reason
		sentinel error
		want     string
	}{
		{ReasonAmbiguous, ErrAmbiguous, "Entry file is ambiguous, please re-enter command with '--descriptor <descriptor>' at the end"},
		{ReasonNoExtensionNoOverride, ErrNoExtensionNoOverride, "Entry file is ambiguous, please re-enter command with '--descriptor <descriptor>' at the end"},
		{ReasonInvalid, ErrInvalidEntry, "Entry file is invalid. Please enter a valid CWL/WDL file with the correct extension on the file name."},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			t.Parallel()

			err := &ClassificationError{Reason: tt.reason}
			if err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v) = false", tt.sentinel)
			}
		})
	}
}

func TestResolution_Warnings(t *testing.T) {
	t.Parallel()

	res := Resolution{Format: FormatCWL, Notes: []Note{NoteWrongExtension}}
	got := res.Warnings()
	want := []string{"This is a CWL file.. Please put the correct extension to the entry file name."}
	if !slices.Equal(got, want) {
		t.Errorf("Warnings() = %q, want %q", got, want)
	}

	res = Resolution{Format: FormatWDL, Notes: []Note{NoteMissingExtension}}
	got = res.Warnings()
	want = []string{"This is a WDL file.. Please put an extension to the entry file name."}
	if !slices.Equal(got, want) {
		t.Errorf("Warnings() = %q, want %q", got, want)
	}
}

func TestExtensionHint(t *testing.T) {
	t.Parallel()

	tests := map[string]Format{
		".cwl": FormatCWL, "cwl": FormatCWL, ".Yml": FormatCWL, ".yaml": FormatCWL,
		".wdl": FormatWDL, "WDL": FormatWDL,
		"": "", ".txt": "", ".json": "",
	}
	for ext, want := range tests {
		if got := ExtensionHint(ext); got != want {
			t.Errorf("ExtensionHint(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestContentHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    Format
		both    bool
	}{
		{"cwl yaml", cwlTool, FormatCWL, false},
		{"cwl json", `{"cwlVersion": "v1.0", "class": "Workflow"}`, FormatCWL, false},
		{"cwl class only", "class: ExpressionTool\n", FormatCWL, false},
		{"wdl workflow", wdlWorkflow, FormatWDL, false},
		{"wdl version header", "version 1.0\n", FormatWDL, false},
		{"wdl import", "import \"lib.wdl\" as lib\n", FormatWDL, false},
		{"both", bothMarkers, "", true},
		{"neither", noMarkers, "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, both := ContentHint([]byte(tt.content))
			if got != tt.want || both != tt.both {
				t.Errorf("ContentHint() = (%q, %v), want (%q, %v)", got, both, tt.want, tt.both)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"cwl": FormatCWL, "WDL": FormatWDL, " Cwl ": FormatCWL, "": ""} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("nextflow"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("ParseFormat(nextflow) error = %v, want ErrInvalidFormat", err)
	}
}

// TestClassifyFile_Properties checks the policy laws over every combination
// of extension, content kind, and override.
func TestClassifyFile_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		ext := rapid.SampledFrom([]string{"", ".cwl", ".CWL", ".yml", ".wdl", ".txt"}).Draw(t, "ext")
		content := rapid.SampledFrom([]string{cwlTool, wdlWorkflow, bothMarkers, noMarkers}).Draw(t, "content")
		override := rapid.SampledFrom([]Format{"", FormatCWL, FormatWDL}).Draw(t, "override")

		f := &File{Path: "entry" + ext, Extension: lowerExt("entry" + ext), Content: []byte(content)}
		res := ClassifyFile(f, override)
		again := ClassifyFile(f, override)

		if res.Format != again.Format || res.Reason != again.Reason {
			t.Fatalf("classification not deterministic: %+v vs %+v", res, again)
		}
		if res.Resolved() {
			if valid, _ := res.Format.IsValid(); !valid {
				t.Fatalf("resolved to invalid format %q", res.Format)
			}
			if res.Err() != nil {
				t.Fatalf("resolved but Err() = %v", res.Err())
			}
		} else if res.Err() == nil {
			t.Fatalf("unresolved (%q) but Err() is nil", res.Reason)
		}

		hint, _ := ContentHint(f.Content)
		switch {
		case override != "" && hint != "" && hint != override:
			if res.Reason != ReasonWrongExtensionForced || res.ContentFormat != hint {
				t.Fatalf("override %q against %q content: got %+v", override, hint, res)
			}
		case override != "":
			if !res.Resolved() || res.Format != override {
				t.Fatalf("override %q not honored: %+v", override, res)
			}
		case ExtensionHint(f.Extension) != "" && ExtensionHint(f.Extension) == hint:
			if !res.Resolved() || res.Format != hint || res.Degraded() {
				t.Fatalf("agreeing hints not resolved cleanly: %+v", res)
			}
		}
	})
}

func lowerExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
