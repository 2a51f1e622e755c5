// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"fmt"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// CommandData is the data an engine command template is rendered with.
// Every field is a path.
type CommandData struct {
	Descriptor string
	Inputs     string
	OutputDir  string
	Metadata   string
	WorkDir    string
}

// Argv renders the engine's command template and splits it into arguments.
// Template values are shell-quoted before splitting so paths with spaces
// survive; $VAR references in the template are expanded through env.
func (s EngineSpec) Argv(data CommandData, env func(string) string) ([]string, error) {
	tmpl, err := template.New(s.Name).Option("missingkey=error").Parse(s.Command)
	if err != nil {
		return nil, fmt.Errorf("parse command template for %s: %w", s.Name, err)
	}

	quoted, err := data.quoted()
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, quoted); err != nil {
		return nil, fmt.Errorf("render command template for %s: %w", s.Name, err)
	}

	argv, err := shell.Fields(sb.String(), env)
	if err != nil {
		return nil, fmt.Errorf("split command for %s: %w", s.Name, err)
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, &InvalidEngineSpecError{Name: s.Name, Reason: "command renders to nothing"}
	}
	return argv, nil
}

func (d CommandData) quoted() (CommandData, error) {
	var err error
	q := func(s string) string {
		if err != nil || s == "" {
			return s
		}
		var out string
		out, err = syntax.Quote(s, syntax.LangPOSIX)
		return out
	}
	out := CommandData{
		Descriptor: q(d.Descriptor),
		Inputs:     q(d.Inputs),
		OutputDir:  q(d.OutputDir),
		Metadata:   q(d.Metadata),
		WorkDir:    q(d.WorkDir),
	}
	if err != nil {
		return CommandData{}, fmt.Errorf("quote command path: %w", err)
	}
	return out, nil
}
