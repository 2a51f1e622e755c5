// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/dockstore/config.cue (or the XDG equivalent on
// Linux, ~/Library/Application Support/dockstore/config.cue on macOS,
// %APPDATA%\dockstore\config.cue on Windows), or from the file named by --config. It covers
// the content cache, input/output provisioning, the command templates of the workflow
// engines, and UI settings.
//
// Every file is validated against the embedded CUE schema (config_schema.cue) before its
// values are merged over the defaults. DOCKSTORE_* environment variables override both,
// e.g. DOCKSTORE_PROVISION_STRICT=true.
package config
