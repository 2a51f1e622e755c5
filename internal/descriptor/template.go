// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// InputsTemplate builds an empty inputs document for a CWL descriptor.
// File and Directory inputs become {"class": ..., "path": ""} objects,
// arrays of them become one-element lists, and every other input is nil.
func InputsTemplate(content []byte) (map[string]any, error) {
	doc, err := decodeCWL(content)
	if err != nil {
		return nil, err
	}
	params, err := cwlParameters(&doc.Inputs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(params))
	for _, p := range params {
		out[p.id] = templateValue(p.typ)
	}
	return out, nil
}

func templateValue(typ *yaml.Node) any {
	if typ == nil {
		return nil
	}
	switch typ.Kind {
	case yaml.ScalarNode:
		name := strings.TrimSuffix(typ.Value, "?")
		if elem, ok := strings.CutSuffix(name, "[]"); ok {
			if v := templateValue(&yaml.Node{Kind: yaml.ScalarNode, Value: elem}); v != nil {
				return []any{v}
			}
			return nil
		}
		if name == "File" || name == "Directory" {
			return map[string]any{"class": name, "path": ""}
		}
	case yaml.SequenceNode:
		// Union such as [null, File]: the first non-null member wins.
		for _, member := range typ.Content {
			if member.Kind == yaml.ScalarNode && member.Value == "null" {
				continue
			}
			return templateValue(member)
		}
	case yaml.MappingNode:
		if t := mappingValue(typ, "type"); t != nil && t.Value == "array" {
			if v := templateValue(mappingValue(typ, "items")); v != nil {
				return []any{v}
			}
		}
	}
	return nil
}
