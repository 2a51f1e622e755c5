// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMissingFields is the sentinel wrapped by MissingFieldsError.
var ErrMissingFields = errors.New("required fields are missing")

var (
	cwlInputsMarker = marker{
		name:    "inputs",
		pattern: regexp.MustCompile(`(?m)(^|[{,\s])["']?inputs["']?\s*:`),
	}
	wdlTaskMarker = marker{
		name:    "task",
		pattern: regexp.MustCompile(`(?m)^\s*task\s+[A-Za-z_]\w*`),
	}
	wdlCommandMarker = marker{
		name:    "command",
		pattern: regexp.MustCompile(`(?m)^\s*command\s*(\{|<<<)`),
	}
	wdlWorkflowMarker = marker{
		name:    "workflow",
		pattern: regexp.MustCompile(`(?m)^\s*workflow\s+[A-Za-z_]\w*`),
	}
	// call is only looked for after the workflow marker.
	wdlCallMarker = marker{
		name:    "call",
		pattern: regexp.MustCompile(`(?m)^\s*call\s+[A-Za-z_][\w.]*`),
		after:   &wdlWorkflowMarker,
	}
)

type (
	marker struct {
		name    string
		pattern *regexp.Regexp
		after   *marker
	}

	// MissingFieldsError lists every required section marker absent from a
	// descriptor, in declaration order.
	MissingFieldsError struct {
		Format Format
		Fields []string
	}
)

// Validate checks that a descriptor carries the sections its format
// requires. It is a smoke test: a document that merely contains the
// literal markers passes.
func Validate(content []byte, f Format) error {
	if valid, errs := f.IsValid(); !valid {
		return errs[0]
	}
	var missing []string
	for _, m := range profileFor(f).required {
		if !m.present(content) {
			missing = append(missing, m.name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Format: f, Fields: missing}
	}
	return nil
}

func (m marker) present(content []byte) bool {
	if m.after != nil {
		loc := m.after.pattern.FindIndex(content)
		if loc == nil {
			return false
		}
		content = content[loc[1]:]
	}
	return m.pattern.Match(content)
}

// Error implements the error interface.
func (e *MissingFieldsError) Error() string {
	quoted := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		quoted[i] = "'" + f + "'"
	}
	return fmt.Sprintf("Required fields that are missing from %s file : %s",
		e.Format.DisplayName(), strings.Join(quoted, " "))
}

// Unwrap returns ErrMissingFields for errors.Is() compatibility.
func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }
