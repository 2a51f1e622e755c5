// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"net/url"
	"path/filepath"
	"strings"
)

// SchemeLocal is the scheme of plain filesystem paths.
const SchemeLocal = ""

// Location is a parsed source or destination reference. Path is set for
// local and file:// locations.
type Location struct {
	Raw    string
	Scheme string
	Path   string
}

// ParseLocation classifies raw as a URI or a filesystem path. Relative
// paths are resolved against baseDir.
func ParseLocation(raw, baseDir string) Location {
	if u, err := url.Parse(raw); err == nil && len(u.Scheme) > 1 && strings.Contains(raw, "://") {
		loc := Location{Raw: raw, Scheme: strings.ToLower(u.Scheme)}
		if loc.Scheme == "file" {
			loc.Path = filepath.FromSlash(u.Path)
		}
		return loc
	}
	path := raw
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return Location{Raw: raw, Scheme: SchemeLocal, Path: filepath.Clean(path)}
}

// IsLocal reports whether the location lives on the local filesystem.
func (l Location) IsLocal() bool {
	return l.Scheme == SchemeLocal || l.Scheme == "file"
}

// Base returns the last element of the location's path.
func (l Location) Base() string {
	if l.Path != "" {
		return filepath.Base(l.Path)
	}
	if u, err := url.Parse(l.Raw); err == nil && u.Path != "" {
		return filepath.Base(filepath.FromSlash(u.Path))
	}
	return filepath.Base(l.Raw)
}

// Join appends name to a directory-like location. The query string of
// a remote location is dropped.
func (l Location) Join(name string) Location {
	if l.Path != "" {
		joined := filepath.Join(l.Path, name)
		raw := joined
		if l.Scheme == "file" {
			raw = "file://" + filepath.ToSlash(joined)
		}
		return Location{Raw: raw, Scheme: l.Scheme, Path: joined}
	}
	u, err := url.Parse(l.Raw)
	if err != nil {
		return Location{Raw: strings.TrimSuffix(l.Raw, "/") + "/" + name, Scheme: l.Scheme}
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + name
	// A pre-signed query only authorizes the URL it was issued for.
	u.RawQuery = ""
	return Location{Raw: u.String(), Scheme: l.Scheme}
}

// Dir returns the location's parent.
func (l Location) Dir() Location {
	if l.Path != "" {
		dir := filepath.Dir(l.Path)
		raw := dir
		if l.Scheme == "file" {
			raw = "file://" + filepath.ToSlash(dir)
		}
		return Location{Raw: raw, Scheme: l.Scheme, Path: dir}
	}
	u, err := url.Parse(l.Raw)
	if err != nil {
		return l
	}
	if i := strings.LastIndex(u.Path, "/"); i >= 0 {
		u.Path = u.Path[:i]
	}
	u.RawQuery = ""
	return Location{Raw: u.String(), Scheme: l.Scheme}
}

// String returns the raw reference.
func (l Location) String() string { return l.Raw }
