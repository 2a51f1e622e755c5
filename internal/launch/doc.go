// SPDX-License-Identifier: MPL-2.0

// Package launch runs the full launch sequence for one workflow: resolve
// the descriptor format, validate the descriptor, stage inputs, run the
// engine, and deliver outputs. Every failure is returned as a typed error
// carrying the process exit code; nothing here exits the process.
package launch
