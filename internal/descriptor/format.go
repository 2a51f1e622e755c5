// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// FormatCWL is the Common Workflow Language.
	FormatCWL Format = "cwl"
	// FormatWDL is the Workflow Description Language.
	FormatWDL Format = "wdl"
)

// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
var ErrInvalidFormat = errors.New("invalid descriptor format")

type (
	// Format identifies one of the supported workflow languages.
	// The zero value ("") means "no format", which is how an absent
	// override or an absent hint is represented.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	// It wraps ErrInvalidFormat for errors.Is() compatibility.
	InvalidFormatError struct {
		Value Format
	}

	// profile carries the per-format data used by the classifier and the
	// validator. Profiles are selected by profileFor; nothing dispatches on
	// format anywhere else in this package.
	profile struct {
		extensions []string
		required   []marker
	}
)

// Formats returns all supported formats in a stable order.
func Formats() []Format {
	return []Format{FormatCWL, FormatWDL}
}

// ParseFormat converts a user-supplied descriptor name (case-insensitive)
// into a Format. The empty string parses to the zero Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return "", nil
	}
	if valid, errs := f.IsValid(); !valid {
		return "", errs[0]
	}
	return f, nil
}

// String returns the string representation of the Format.
func (f Format) String() string { return string(f) }

// DisplayName returns the upper-case language name used in user messages.
func (f Format) DisplayName() string { return strings.ToUpper(string(f)) }

// IsValid returns whether the Format is one of the supported languages.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatCWL, FormatWDL:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// Error implements the error interface for InvalidFormatError.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid descriptor format %q (valid: cwl, wdl)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

func profileFor(f Format) profile {
	switch f {
	case FormatCWL:
		return profile{
			extensions: []string{".cwl", ".yaml", ".yml"},
			required:   []marker{cwlInputsMarker},
		}
	case FormatWDL:
		return profile{
			extensions: []string{".wdl"},
			required:   []marker{wdlTaskMarker, wdlCommandMarker, wdlWorkflowMarker, wdlCallMarker},
		}
	default:
		return profile{}
	}
}
