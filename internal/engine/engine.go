// Package engine orchestrates release processing: it acquires the run
// lock, loads control and mapping rows, discovers release files, and
// drives each release through the per-release state machine. Releases
// run sequentially under one lock acquisition so a single writer owns
// the manifest and the certification cache for the whole cycle.
package engine

import (
	"io"
	"log/slog"
	"time"

	"github.com/brickline-labs/pricesheet/internal/certify"
	"github.com/brickline-labs/pricesheet/internal/drive"
	"github.com/brickline-labs/pricesheet/internal/match"
	"github.com/brickline-labs/pricesheet/internal/sheet"
	"github.com/brickline-labs/pricesheet/internal/state"
)

// Options holds engine tuning knobs.
type Options struct {
	// Filters shrink the candidate set before matching.
	Filters match.Filters
	// DryRun simulates rendering and uploads nothing.
	DryRun bool
	// Overwrite reprocesses keys the manifest already marks SUCCEEDED.
	Overwrite bool
	// LockStaleness is the heartbeat age after which a lock counts as stale.
	LockStaleness time.Duration
	// PollInterval separates cycles in polling mode.
	PollInterval time.Duration
	// RetryAttempts bounds retries of transient store failures.
	RetryAttempts int
	// RetryBase is the first backoff step.
	RetryBase time.Duration
}

func (o *Options) applyDefaults() {
	if o.LockStaleness <= 0 {
		o.LockStaleness = 30 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Minute
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
}

// Engine wires the collaborators for release processing.
type Engine struct {
	// Document store (release inbox, templates, final outputs)
	store drive.Store
	// Control/mapping tabular source
	tabs sheet.TabularSource
	// Durable local state (manifest, audit, lock, caches)
	states *state.Store
	// Template certifier
	certifier *certify.Engine

	opts   Options
	logger *slog.Logger
}

// New builds an engine. A nil logger discards.
func New(store drive.Store, tabs sheet.TabularSource, states *state.Store, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	opts.applyDefaults()
	return &Engine{
		store:     store,
		tabs:      tabs,
		states:    states,
		certifier: certify.New(store, states, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Certifier exposes the template certifier for the certify and inspect
// commands.
func (e *Engine) Certifier() *certify.Engine {
	return e.certifier
}
