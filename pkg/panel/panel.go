// Package panel defines the data-dependent console regions the gateway
// serves. Each panel binds one data source to one permission identifier;
// whether the source may be queried for a given principal is decided by the
// authz engine, never by the panel itself.
package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmatic/console/pkg/domain"
)

// Source produces one panel's data. The shape of the result is opaque to
// the gating logic; it is serialized to the client untouched.
type Source interface {
	Fetch(ctx context.Context) (any, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) (any, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context) (any, error) {
	return f(ctx)
}

// Panel binds a named console region to its permission gate identifier and
// data source.
type Panel struct {
	Name       string
	Permission string
	Source     Source
}

// Registry holds the set of panels the gateway serves, preserving
// registration order for listing.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	panels map[string]Panel
}

// NewRegistry creates an empty panel registry.
func NewRegistry() *Registry {
	return &Registry{panels: make(map[string]Panel)}
}

// Register adds a panel. Names are unique; registering a duplicate is a
// programming error surfaced at startup.
func (r *Registry) Register(p Panel) error {
	if p.Name == "" {
		return fmt.Errorf("panel name must not be empty")
	}
	if p.Permission == "" {
		return fmt.Errorf("panel %q requires a permission identifier", p.Name)
	}
	if p.Source == nil {
		return fmt.Errorf("panel %q requires a source", p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.panels[p.Name]; exists {
		return fmt.Errorf("panel %q already registered", p.Name)
	}
	r.panels[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Get returns the named panel.
func (r *Registry) Get(name string) (Panel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[name]
	return p, ok
}

// Names lists registered panels in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Fetch runs the named panel's source. Callers must have already settled
// entitlement; this only distinguishes unknown panels from source failures.
func (r *Registry) Fetch(ctx context.Context, name string) (any, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPanelNotFound, name)
	}
	data, err := p.Source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceFailed, name, err)
	}
	return data, nil
}
