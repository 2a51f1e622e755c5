// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// readOutputs extracts the produced outputs an engine reported.
func readOutputs(from OutputsSource, stdout []byte, metadataPath string) (map[string]any, error) {
	switch from {
	case OutputsFromStdout:
		return lastJSONObject(stdout)
	case OutputsFromMetadata:
		data, err := os.ReadFile(metadataPath)
		if err != nil {
			return nil, fmt.Errorf("read engine metadata: %w", err)
		}
		var meta struct {
			Outputs map[string]any `json:"outputs"`
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decode engine metadata: %w", err)
		}
		return meta.Outputs, nil
	default:
		return nil, fmt.Errorf("unknown outputs source %q", from)
	}
}

// lastJSONObject decodes the last top-level JSON object in out. Engines may
// print log lines around the object.
func lastJSONObject(out []byte) (map[string]any, error) {
	var found map[string]any
	for i := 0; i < len(out); {
		start := bytes.IndexByte(out[i:], '{')
		if start < 0 {
			break
		}
		start += i
		dec := json.NewDecoder(bytes.NewReader(out[start:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			i = start + 1
			continue
		}
		found = obj
		i = start + int(dec.InputOffset())
	}
	if found == nil {
		return nil, errors.New("no JSON object in engine output")
	}
	return found, nil
}
