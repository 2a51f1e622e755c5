// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	wdlWorkflowHeader = regexp.MustCompile(`(?m)^\s*workflow\s+([A-Za-z_]\w*)\s*\{`)
	wdlOutputHeader   = regexp.MustCompile(`(?m)^\s*output\s*\{`)
	wdlOutputDecl     = regexp.MustCompile(`^\s*[A-Za-z][\w\[\],?+ ]*?\s+([A-Za-z_]\w*)\s*=`)
)

// cwlDocument is the subset of a CWL document this package reads.
type cwlDocument struct {
	Inputs  yaml.Node `yaml:"inputs"`
	Outputs yaml.Node `yaml:"outputs"`
}

// DeclaredOutputs lists the output identifiers a descriptor declares.
// CWL ids come from the top-level outputs section (map keys or list ids);
// WDL names come from the workflow's output block, prefixed with the
// workflow name as Cromwell reports them.
func DeclaredOutputs(f Format, content []byte) ([]string, error) {
	switch f {
	case FormatCWL:
		doc, err := decodeCWL(content)
		if err != nil {
			return nil, err
		}
		params, err := cwlParameters(&doc.Outputs)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(params))
		for i, p := range params {
			ids[i] = p.id
		}
		return ids, nil
	case FormatWDL:
		return wdlOutputs(content), nil
	default:
		return nil, &InvalidFormatError{Value: f}
	}
}

func decodeCWL(content []byte) (*cwlDocument, error) {
	var doc cwlDocument
	// YAML is a superset of JSON except for tabs used as indentation.
	normalized := bytes.ReplaceAll(content, []byte("\t"), []byte("  "))
	if err := yaml.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("decode CWL document: %w", err)
	}
	return &doc, nil
}

type cwlParameter struct {
	id   string
	typ  *yaml.Node
	node *yaml.Node
}

// cwlParameters flattens the map and list forms of a CWL parameter section.
func cwlParameters(section *yaml.Node) ([]cwlParameter, error) {
	var params []cwlParameter
	switch section.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(section.Content); i += 2 {
			key, value := section.Content[i], section.Content[i+1]
			p := cwlParameter{id: key.Value, node: value}
			if value.Kind == yaml.MappingNode {
				p.typ = mappingValue(value, "type")
			} else {
				p.typ = value
			}
			params = append(params, p)
		}
	case yaml.SequenceNode:
		for _, item := range section.Content {
			if item.Kind != yaml.MappingNode {
				continue
			}
			id := mappingValue(item, "id")
			if id == nil {
				continue
			}
			params = append(params, cwlParameter{
				id:   strings.TrimPrefix(id.Value, "#"),
				typ:  mappingValue(item, "type"),
				node: item,
			})
		}
	default:
		return nil, fmt.Errorf("unexpected CWL parameter section at line %d", section.Line)
	}
	return params, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func wdlOutputs(content []byte) []string {
	loc := wdlWorkflowHeader.FindSubmatchIndex(content)
	if loc == nil {
		return nil
	}
	name := string(content[loc[2]:loc[3]])
	body := blockBody(content, loc[1]-1)

	outLoc := wdlOutputHeader.FindIndex(body)
	if outLoc == nil {
		return nil
	}
	block := blockBody(body, outLoc[1]-1)
	var ids []string
	for line := range strings.SplitSeq(string(block), "\n") {
		if m := wdlOutputDecl.FindStringSubmatch(line); m != nil {
			ids = append(ids, name+"."+m[1])
		}
	}
	return ids
}

// blockBody returns the text between the brace at open and its match, or
// the remainder of content when the braces are unbalanced.
func blockBody(content []byte, open int) []byte {
	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[open+1 : i]
			}
		}
	}
	return content[open+1:]
}
