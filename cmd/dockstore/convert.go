// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ctb/dockstore/internal/descriptor"
	"github.com/ctb/dockstore/internal/issue"
	"github.com/ctb/dockstore/pkg/types"
)

// newConvertCommand creates the `dockstore convert` command tree.
func newConvertCommand(app *App) *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Generate inputs documents from descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	convertCmd.AddCommand(
		newTemplateCommand(app, "cwl2json", "JSON", writeJSONTemplate),
		newTemplateCommand(app, "cwl2yaml", "YAML", writeYAMLTemplate),
	)
	return convertCmd
}

func newTemplateCommand(app *App, use, label string, write func(io.Writer, map[string]any) error) *cobra.Command {
	var cwlPath string
	templateCmd := &cobra.Command{
		Use:   use,
		Short: "Print an empty " + label + " inputs document for a CWL descriptor",
		Long: `Print an empty ` + label + ` inputs document for a CWL descriptor.

File and Directory inputs are emitted with an empty path to fill in;
every other input is null.`,
		Example: "  dockstore convert " + use + " --cwl md5sum.cwl",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := inputsTemplate(cwlPath)
			if err != nil {
				return &ExitError{Code: types.ExitValidation, Err: err}
			}
			return write(app.stdout, tmpl)
		},
	}
	templateCmd.Flags().StringVar(&cwlPath, "cwl", "", "path to the CWL descriptor")
	_ = templateCmd.MarkFlagRequired("cwl")
	return templateCmd
}

func inputsTemplate(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read descriptor").
			WithResource(path).
			WithSuggestion("Check that the --cwl path exists").
			Wrap(err).
			BuildError()
	}
	tmpl, err := descriptor.InputsTemplate(content)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("convert descriptor").
			WithResource(path).
			WithSuggestion("Only CWL descriptors with an inputs section can be converted").
			Wrap(err).
			BuildError()
	}
	return tmpl, nil
}

func writeJSONTemplate(w io.Writer, tmpl map[string]any) error {
	data, err := json.MarshalIndent(tmpl, "", "  ")
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeYAMLTemplate(w io.Writer, tmpl map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tmpl); err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	return enc.Close()
}
