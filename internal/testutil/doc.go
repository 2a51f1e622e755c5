// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the launcher's tests: Must*
// wrappers that fail the test on error, a controllable clock, and fake
// workflow engines written as shell scripts.
package testutil
