// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown help
// pages, one per failure category of a launch, rendered with glamour.
package issue
