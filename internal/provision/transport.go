// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsupportedScheme is returned when no transport handles a location.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

type (
	// Transport moves files between the local filesystem and one family of
	// locations.
	Transport interface {
		// Stat describes the source. Version is an opaque tag that changes
		// whenever the content does; it is empty when unknown.
		Stat(ctx context.Context, loc Location) (Info, error)
		// Fetch writes the content at loc to the local path dst.
		Fetch(ctx context.Context, loc Location, dst string) error
		// Put copies the local file src to loc.
		Put(ctx context.Context, src string, loc Location) error
	}

	// Info is the result of Transport.Stat.
	Info struct {
		Version string
		Size    int64
		IsDir   bool
	}

	// Transports maps a URI scheme to its Transport. SchemeLocal ("")
	// handles plain paths.
	Transports map[string]Transport

	// UnsupportedSchemeError is returned when no transport is registered
	// for a location's scheme.
	UnsupportedSchemeError struct {
		Scheme string
	}
)

// DefaultTransports returns the built-in registry: the local filesystem
// for plain paths and file://, HTTP for http:// and https://.
func DefaultTransports(client *http.Client) Transports {
	local := LocalTransport{}
	web := &HTTPTransport{Client: client}
	return Transports{
		SchemeLocal: local,
		"file":      local,
		"http":      web,
		"https":     web,
	}
}

// For returns the transport for loc.
func (t Transports) For(loc Location) (Transport, error) {
	if tr, ok := t[loc.Scheme]; ok {
		return tr, nil
	}
	return nil, &UnsupportedSchemeError{Scheme: loc.Scheme}
}

// Error implements the error interface.
func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("no transport for scheme %q", e.Scheme)
}

// Unwrap returns ErrUnsupportedScheme for errors.Is() compatibility.
func (e *UnsupportedSchemeError) Unwrap() error { return ErrUnsupportedScheme }
