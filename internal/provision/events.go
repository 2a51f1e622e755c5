// SPDX-License-Identifier: MPL-2.0

package provision

import "fmt"

const (
	// EventDownloading is emitted after a source was fetched into staging.
	EventDownloading EventKind = "Downloading"
	// EventCacheHit is emitted when a remote source was served from the cache.
	EventCacheHit EventKind = "Cache hit"
	// EventUploading is emitted after an output reached its destination.
	EventUploading EventKind = "Uploading"
)

type (
	// EventKind names a transfer event.
	EventKind string

	// Event reports one completed transfer.
	Event struct {
		Kind        EventKind
		Source      string
		Destination string
	}

	// EventSink receives transfer events. The engine never calls Emit
	// concurrently.
	EventSink interface {
		Emit(Event)
	}

	// EventSinkFunc adapts a function to EventSink.
	EventSinkFunc func(Event)
)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

// String renders the event as "<Kind>: <source> to <destination>".
func (e Event) String() string {
	return fmt.Sprintf("%s: %s to %s", e.Kind, e.Source, e.Destination)
}
