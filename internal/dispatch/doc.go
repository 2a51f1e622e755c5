// SPDX-License-Identifier: MPL-2.0

// Package dispatch hands a staged workflow to the external engine bound to
// its descriptor format and interprets the result.
//
// Engine bindings are data: an EngineSpec holds a command template, the
// line that marks a successful run, and where the engine reports produced
// outputs. The built-in bindings run cwltool for CWL and Cromwell for WDL;
// both can be replaced through configuration.
package dispatch
