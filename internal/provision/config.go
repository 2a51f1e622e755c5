// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ctb/dockstore/internal/cache"
)

const (
	// DefaultConcurrency is the number of transfers run in parallel.
	DefaultConcurrency = 4
	// DefaultRetries is the number of attempts made for each transfer.
	DefaultRetries = 3
	// DefaultRetryBackoff is the wait before the second attempt; it doubles
	// for every further attempt.
	DefaultRetryBackoff = 500 * time.Millisecond
)

type (
	// Config holds the settings of an Engine.
	Config struct {
		// Concurrency bounds the number of transfers in flight.
		Concurrency int
		// Retries is the number of attempts per transfer, including the first.
		Retries int
		// RetryBackoff is the base delay between attempts.
		RetryBackoff time.Duration
		// WorkDir is the parent of per-run staging directories. Empty means
		// the system temp directory.
		WorkDir string
		// SkipKeys are top-level document keys holding output destinations
		// rather than inputs.
		SkipKeys []string
		// FileKeys are top-level document keys whose plain string values
		// are file locations.
		FileKeys []string
		// Cache is consulted for remote sources when non-nil.
		Cache *cache.Cache
		// Events receives one event per completed transfer.
		Events EventSink
		// Logger receives transfer diagnostics.
		Logger *log.Logger
		// HTTPClient is used by the built-in http(s) transport.
		HTTPClient *http.Client
	}

	// Option is a functional option for configuring an Engine.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:  DefaultConcurrency,
		Retries:      DefaultRetries,
		RetryBackoff: DefaultRetryBackoff,
		Logger:       log.NewWithOptions(io.Discard, log.Options{Prefix: "provision"}),
		HTTPClient:   &http.Client{Timeout: 30 * time.Minute},
	}
}

// WithConcurrency sets the number of parallel transfers. Values below one
// are ignored.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithRetries sets the number of attempts per transfer. Values below one
// are ignored.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Config) {
		if n > 0 {
			c.Retries = n
		}
		if backoff >= 0 {
			c.RetryBackoff = backoff
		}
	}
}

// WithWorkDir sets the parent directory for staging directories.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithSkipKeys marks document keys as output bindings.
func WithSkipKeys(keys ...string) Option {
	return func(c *Config) {
		c.SkipKeys = append(c.SkipKeys, keys...)
	}
}

// WithFileKeys marks document keys whose string values are file locations.
func WithFileKeys(keys ...string) Option {
	return func(c *Config) {
		c.FileKeys = append(c.FileKeys, keys...)
	}
}

// WithCache enables the content cache for remote sources.
func WithCache(cc *cache.Cache) Option {
	return func(c *Config) {
		c.Cache = cc
	}
}

// WithEventSink sets the receiver of transfer events.
func WithEventSink(sink EventSink) Option {
	return func(c *Config) {
		c.Events = sink
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithHTTPClient replaces the client used for http and https transfers.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.HTTPClient = client
		}
	}
}
