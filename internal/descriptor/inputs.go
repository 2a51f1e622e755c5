// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"regexp"
	"strings"
)

var (
	wdlInputHeader = regexp.MustCompile(`(?m)^\s*input\s*\{`)
	wdlFileDecl    = regexp.MustCompile(`^\s*(?:File|Directory|Array\[(?:File|Directory)\??\]\+?)\??\s+([A-Za-z_]\w*)\s*(?:=|$)`)
)

// FileInputs lists the inputs whose values are file locations, keyed the
// way the inputs document names them. For WDL these are the workflow's
// File, Directory and Array[File] inputs as "workflow.name"; a plain string
// under such a key is a location to stage. CWL documents always carry
// File objects, so nothing is reported for them.
func FileInputs(f Format, content []byte) ([]string, error) {
	switch f {
	case FormatCWL:
		return nil, nil
	case FormatWDL:
		return wdlFileInputs(content), nil
	default:
		return nil, &InvalidFormatError{Value: f}
	}
}

func wdlFileInputs(content []byte) []string {
	loc := wdlWorkflowHeader.FindSubmatchIndex(content)
	if loc == nil {
		return nil
	}
	name := string(content[loc[2]:loc[3]])
	body := blockBody(content, loc[1]-1)

	// WDL 1.x declares inputs in an input section; draft-2 declares them
	// at the top of the workflow body.
	var decls []string
	if in := wdlInputHeader.FindIndex(body); in != nil {
		decls = strings.Split(string(blockBody(body, in[1]-1)), "\n")
	} else {
		decls = topLevelLines(body)
	}

	var ids []string
	for _, line := range decls {
		if m := wdlFileDecl.FindStringSubmatch(line); m != nil {
			ids = append(ids, name+"."+m[1])
		}
	}
	return ids
}

// topLevelLines returns the lines of body that are not nested in a block.
func topLevelLines(body []byte) []string {
	var lines []string
	depth := 0
	for line := range strings.SplitSeq(string(body), "\n") {
		if depth == 0 {
			lines = append(lines, line)
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}
	return lines
}
