// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is the sentinel wrapped by DocumentError.
var ErrInvalidDocument = errors.New("invalid inputs document")

// DocumentError is returned when an inputs document cannot be read or is
// not a JSON/YAML object.
type DocumentError struct {
	Path string
	Err  error
}

// LoadDocument reads a JSON or YAML inputs document. The format follows the
// file extension; anything else is sniffed (a leading '{' means JSON).
func LoadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}
	doc, err := decodeDocument(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, &DocumentError{Path: path, Err: err}
	}
	return doc, nil
}

func decodeDocument(data []byte, ext string) (map[string]any, error) {
	isJSON := ext == ".json"
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		isJSON = bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
	}

	var doc map[string]any
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	}
	if doc == nil {
		return nil, errors.New("document must be an object")
	}
	return doc, nil
}

// WriteDocument writes doc as indented JSON.
func WriteDocument(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode inputs document: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	return fmt.Sprintf("inputs document %s: %v", e.Path, e.Err)
}

// Unwrap returns both the sentinel and the cause.
func (e *DocumentError) Unwrap() []error { return []error{ErrInvalidDocument, e.Err} }
