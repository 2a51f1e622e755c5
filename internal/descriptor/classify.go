// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

const (
	// ReasonNone marks a resolved classification.
	ReasonNone Reason = ""
	// ReasonAmbiguous means the extension and the content disagree.
	ReasonAmbiguous Reason = "ambiguous"
	// ReasonNoExtensionNoOverride means there is no extension, no override,
	// and the content alone cannot decide between formats.
	ReasonNoExtensionNoOverride Reason = "no-extension-no-override"
	// ReasonWrongExtensionForced means the override contradicts the content.
	ReasonWrongExtensionForced Reason = "wrong-extension-forced"
	// ReasonInvalid means no hint matches at all, or the file is unreadable.
	ReasonInvalid Reason = "invalid"
)

const (
	// NoteExtensionOnly is attached when only the extension named a format.
	NoteExtensionOnly Note = "extension-only"
	// NoteMissingExtension is attached when the file has no extension.
	NoteMissingExtension Note = "missing-extension"
	// NoteWrongExtension is attached when an override fixed a mismatched extension.
	NoteWrongExtension Note = "wrong-extension"
)

var (
	// ErrAmbiguous is returned when extension and content disagree.
	ErrAmbiguous = errors.New("entry file is ambiguous")
	// ErrNoExtensionNoOverride is returned when content alone cannot decide.
	ErrNoExtensionNoOverride = errors.New("entry file has no extension and no descriptor override")
	// ErrWrongExtensionForced is returned when an override contradicts the content.
	ErrWrongExtensionForced = errors.New("descriptor override contradicts entry file content")
	// ErrInvalidEntry is returned when the entry file matches no format.
	ErrInvalidEntry = errors.New("entry file is invalid")

	cwlContentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)(^|[{,\s])["']?cwlVersion["']?\s*:`),
		regexp.MustCompile(`(?m)(^|[{,\s])["']?class["']?\s*:\s*["']?(Workflow|CommandLineTool|ExpressionTool)\b`),
	}
	wdlContentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(workflow|task)\s+[A-Za-z_][\w]*\s*\{`),
		regexp.MustCompile(`(?m)^\s*version\s+(1\.\d+|draft-\d+|development)\s*$`),
		regexp.MustCompile(`(?m)^\s*import\s+"`),
	}
)

type (
	// Reason explains why a classification is unresolved.
	Reason string

	// Note is a non-fatal observation made while classifying.
	Note string

	// File is a descriptor read from disk. It is not modified after Read.
	File struct {
		Path string
		// Extension is the lower-cased suffix including the dot, or "".
		Extension string
		Content   []byte
	}

	// Resolution is the classifier's verdict. Format names at most one
	// language; when Reason is ReasonWrongExtensionForced it holds the
	// override and ContentFormat holds the contradicting content format.
	Resolution struct {
		File            *File
		Format          Format
		Reason          Reason
		ContentFormat   Format
		ExtensionFormat Format
		Override        Format
		Notes           []Note
		// Cause is set when the file could not be read.
		Cause error
	}

	// ClassificationError is returned by Resolution.Err for unresolved
	// classifications. It wraps the sentinel matching its Reason.
	ClassificationError struct {
		Path          string
		Reason        Reason
		Override      Format
		ContentFormat Format
		Cause         error
	}
)

// Read loads a descriptor file.
func Read(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:      path,
		Extension: strings.ToLower(filepath.Ext(path)),
		Content:   content,
	}, nil
}

// Classify reads path and decides its format. It never terminates the
// process; read failures come back as ReasonInvalid with Cause set.
func Classify(path string, override Format) Resolution {
	f, err := Read(path)
	if err != nil {
		return Resolution{
			File:     &File{Path: path, Extension: strings.ToLower(filepath.Ext(path))},
			Reason:   ReasonInvalid,
			Override: override,
			Cause:    err,
		}
	}
	return ClassifyFile(f, override)
}

// ClassifyFile applies the classification policy to an already-read file.
func ClassifyFile(f *File, override Format) Resolution {
	res := Resolution{
		File:            f,
		Override:        override,
		ExtensionFormat: ExtensionHint(f.Extension),
	}
	content, both := ContentHint(f.Content)
	res.ContentFormat = content

	if override != "" {
		if content != "" && content != override {
			res.Format = override
			res.Reason = ReasonWrongExtensionForced
			return res
		}
		res.Format = override
		switch {
		case f.Extension == "":
			res.Notes = append(res.Notes, NoteMissingExtension)
		case res.ExtensionFormat != override:
			res.Notes = append(res.Notes, NoteWrongExtension)
		}
		return res
	}

	ext := res.ExtensionFormat
	switch {
	case f.Extension == "" && both:
		res.Reason = ReasonNoExtensionNoOverride
	case ext != "" && content != "" && ext == content:
		res.Format = ext
	case ext != "" && content != "":
		res.Reason = ReasonAmbiguous
	case ext != "":
		res.Format = ext
		res.Notes = append(res.Notes, NoteExtensionOnly)
	case content != "":
		res.Format = content
		res.Notes = append(res.Notes, NoteMissingExtension)
	default:
		res.Reason = ReasonInvalid
	}
	return res
}

// ExtensionHint maps a file suffix (with or without the leading dot) to a
// format. Matching is case-insensitive.
func ExtensionHint(ext string) Format {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for _, f := range Formats() {
		if slices.Contains(profileFor(f).extensions, ext) {
			return f
		}
	}
	return ""
}

// ContentHint inspects descriptor text for language markers. It returns
// the single matching format, or "" when none or both match; both reports
// the latter case.
func ContentHint(content []byte) (f Format, both bool) {
	isCWL := matchesAny(cwlContentPatterns, content)
	isWDL := matchesAny(wdlContentPatterns, content)
	switch {
	case isCWL && isWDL:
		return "", true
	case isCWL:
		return FormatCWL, false
	case isWDL:
		return FormatWDL, false
	default:
		return "", false
	}
}

func matchesAny(patterns []*regexp.Regexp, content []byte) bool {
	for _, p := range patterns {
		if p.Match(content) {
			return true
		}
	}
	return false
}

// Resolved reports whether exactly one format was chosen.
func (r Resolution) Resolved() bool {
	return r.Reason == ReasonNone && r.Format != ""
}

// Degraded reports whether the format was chosen on the extension alone.
func (r Resolution) Degraded() bool {
	return slices.Contains(r.Notes, NoteExtensionOnly)
}

// Err returns a *ClassificationError for unresolved results, nil otherwise.
func (r Resolution) Err() error {
	if r.Resolved() {
		return nil
	}
	path := ""
	if r.File != nil {
		path = r.File.Path
	}
	reason := r.Reason
	if reason == ReasonNone {
		reason = ReasonInvalid
	}
	return &ClassificationError{
		Path:          path,
		Reason:        reason,
		Override:      r.Override,
		ContentFormat: r.ContentFormat,
		Cause:         r.Cause,
	}
}

// Warnings renders the resolution's notes as user-facing messages.
func (r Resolution) Warnings() []string {
	warnings := make([]string, 0, len(r.Notes))
	for _, n := range r.Notes {
		warnings = append(warnings, n.Message(r.Format))
	}
	return warnings
}

// Message returns the user-facing text of the note for format f.
func (n Note) Message(f Format) string {
	switch n {
	case NoteWrongExtension:
		return fmt.Sprintf("This is a %s file.. Please put the correct extension to the entry file name.", f.DisplayName())
	case NoteMissingExtension:
		return fmt.Sprintf("This is a %s file.. Please put an extension to the entry file name.", f.DisplayName())
	case NoteExtensionOnly:
		return fmt.Sprintf("Entry file content does not look like %s; continuing on the file extension alone.", f.DisplayName())
	default:
		return string(n)
	}
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	switch e.Reason {
	case ReasonAmbiguous, ReasonNoExtensionNoOverride:
		return "Entry file is ambiguous, please re-enter command with '--descriptor <descriptor>' at the end"
	case ReasonWrongExtensionForced:
		return fmt.Sprintf("Entry file is a %s file but '--descriptor %s' was given. Please correct the descriptor or the entry file.",
			e.ContentFormat.DisplayName(), e.Override)
	default:
		msg := "Entry file is invalid. Please enter a valid CWL/WDL file with the correct extension on the file name."
		if e.Cause != nil {
			msg += fmt.Sprintf(" (%v)", e.Cause)
		}
		return msg
	}
}

// Unwrap returns the sentinel for the reason.
func (e *ClassificationError) Unwrap() []error {
	var sentinel error
	switch e.Reason {
	case ReasonAmbiguous:
		sentinel = ErrAmbiguous
	case ReasonNoExtensionNoOverride:
		sentinel = ErrNoExtensionNoOverride
	case ReasonWrongExtensionForced:
		sentinel = ErrWrongExtensionForced
	default:
		sentinel = ErrInvalidEntry
	}
	if e.Cause != nil {
		return []error{sentinel, e.Cause}
	}
	return []error{sentinel}
}
