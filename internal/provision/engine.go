// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"sync"
)

// Engine stages inputs and delivers outputs.
type Engine struct {
	cfg        *Config
	transports Transports

	emitMu sync.Mutex
}

// New creates an Engine with the built-in transports.
func New(opts ...Option) *Engine {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Engine{
		cfg:        cfg,
		transports: DefaultTransports(cfg.HTTPClient),
	}
}

// Register adds or replaces the transport for scheme.
func (e *Engine) Register(scheme string, t Transport) {
	e.transports[scheme] = t
}

// Transports returns the engine's registry.
func (e *Engine) Transports() Transports { return e.transports }

// Fetch copies a single location to dst through the registry, with
// retries. It is used for fetching remote descriptors.
func (e *Engine) Fetch(ctx context.Context, loc Location, dst string) error {
	tr, err := e.transports.For(loc)
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error { return tr.Fetch(ctx, loc, dst) })
}

func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	return retryWithBackoff(ctx, e.cfg.Retries, e.cfg.RetryBackoff, func(attempt int) (bool, error) {
		err := fn()
		if err != nil && attempt+1 < e.cfg.Retries && retryable(err) {
			e.cfg.Logger.Debug("transfer failed, retrying", "attempt", attempt+1, "error", err)
			return true, err
		}
		return false, err
	})
}

func (e *Engine) emit(kind EventKind, src, dst string) {
	e.cfg.Logger.Info(string(kind), "from", src, "to", dst)
	if e.cfg.Events == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.cfg.Events.Emit(Event{Kind: kind, Source: src, Destination: dst})
}
