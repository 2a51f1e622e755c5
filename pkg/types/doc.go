// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared between the launcher's
// packages and its command-line surface.
package types
