// SPDX-License-Identifier: MPL-2.0

// Package provision stages workflow inputs into a working directory and
// delivers workflow outputs to their destinations.
//
// An inputs document (JSON or YAML) is walked for CWL-style File and
// Directory objects, including nested secondaryFiles and listing entries,
// plus any plain string values under configured file keys (the shape
// Cromwell uses for WDL inputs). Each reference becomes a Task; tasks are
// transferred concurrently with a bounded worker count, and remote sources
// go through the content cache when one is configured.
//
//	engine := provision.New(
//	    provision.WithCache(c),
//	    provision.WithSkipKeys(outputIDs...),
//	)
//	staged, err := engine.StageInputs(ctx, "inputs.json")
//	// run the workflow engine against staged.DocumentPath
//	report, err := engine.ProvisionOutputs(ctx, staged.Bindings, produced)
//
// Transfers are dispatched by URI scheme through a Transports registry;
// local paths, file://, http:// and https:// are built in.
package provision
