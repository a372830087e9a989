package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowmatic/console/pkg/access"
)

// Binding ties one panel name to the permission identifier its gate checks.
type Binding struct {
	Panel      string
	Permission string
}

// View is what a panel renders right now. Exactly one presentation applies
// per state: neutral/loading while AuthPending, the fixed denial while
// Denied, and data or a fetch error while Authorized.
type View struct {
	State     access.State
	Data      json.RawMessage
	Err       error
	UpdatedAt time.Time
}

// Refresher drives all panels on one shared fixed-interval cadence: fetch
// the authorized-menu set, feed every gate, and fetch data only for panels
// whose gate enables it. There is no per-panel backoff; every panel shares
// the same cadence.
type Refresher struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger

	bindings []Binding
	gates    map[string]*access.Gate

	// generation invalidates in-flight refreshes: a result is applied only
	// if no newer refresh has started, so a slow response can never
	// overwrite fresher state.
	generation atomic.Uint64

	mu    sync.RWMutex
	views map[string]View
}

// NewRefresher builds a refresher for the given panel bindings.
func NewRefresher(client *Client, interval time.Duration, bindings []Binding, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	r := &Refresher{
		client:   client,
		interval: interval,
		logger:   logger,
		bindings: bindings,
		gates:    make(map[string]*access.Gate, len(bindings)),
		views:    make(map[string]View, len(bindings)),
	}
	for _, b := range bindings {
		r.gates[b.Panel] = access.NewGate(b.Permission)
		r.views[b.Panel] = View{State: access.AuthPending}
	}
	return r
}

// Run refreshes immediately and then on every tick until the context is
// cancelled. Teardown invalidates whatever is still in flight.
func (r *Refresher) Run(ctx context.Context) {
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Bump the generation so late arrivals from the cancelled
			// cycle are discarded rather than applied to a torn-down
			// panel set.
			r.generation.Add(1)
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce performs one full cycle: authorization first, then gated
// panel fetches.
func (r *Refresher) RefreshOnce(ctx context.Context) {
	gen := r.generation.Add(1)

	set, err := r.client.FetchMenuSet(ctx)
	if err != nil {
		// The authorization set is unavailable, which is indistinguishable
		// from "not yet loaded": every panel falls back to the neutral
		// state and no data fetch fires.
		r.logger.Warn("Authorization fetch failed", "error", err)
		set = nil
	}

	for _, b := range r.bindings {
		state := r.gates[b.Panel].Observe(set)

		if state != access.Authorized {
			r.apply(gen, b.Panel, View{State: state, UpdatedAt: time.Now()})
			continue
		}

		data, err := r.client.FetchPanel(ctx, b.Panel)
		view := View{State: state, Data: data, Err: err, UpdatedAt: time.Now()}
		r.apply(gen, b.Panel, view)
	}
}

// apply installs a view unless a newer refresh has started since the
// producing cycle began.
func (r *Refresher) apply(gen uint64, panel string, view View) {
	if r.generation.Load() != gen {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[panel] = view
}

// View returns the current presentation for one panel.
func (r *Refresher) View(panel string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.views[panel]
	return view, ok
}

// Views returns a copy of all current panel views.
func (r *Refresher) Views() map[string]View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]View, len(r.views))
	for name, view := range r.views {
		out[name] = view
	}
	return out
}
