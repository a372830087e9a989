// Package access implements the permission gate that decides whether a
// console panel may issue its data request and what it should render while
// that decision is unsettled.
//
// The gate is an explicit three-state machine rather than nested boolean
// conditionals so the "no premature denial" rule stays auditable: while the
// authorization set has not loaded, the gate neither enables the data fetch
// nor commits to a denial.
package access

import (
	"sync"

	"github.com/flowmatic/console/pkg/domain"
)

// State is the gate's position in its entitlement state machine.
type State int

const (
	// AuthPending means the authorization set has not loaded yet. The data
	// fetch stays disabled and no denial may be rendered.
	AuthPending State = iota
	// Denied means the authorization set loaded and the required surface is
	// not a member. The data fetch stays disabled; a deterministic denial
	// is rendered.
	Denied
	// Authorized means the authorization set loaded and contains the
	// required surface. Only in this state may the data fetch run.
	Authorized
)

// String returns the state's name for logs and metrics labels.
func (s State) String() string {
	switch s {
	case AuthPending:
		return "auth_pending"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Gate binds one panel to one required permission identifier and tracks the
// entitlement state across authorization refreshes. Safe for concurrent use:
// the refresh loop observes while render paths read.
type Gate struct {
	required string

	mu    sync.RWMutex
	state State
}

// NewGate creates a gate in AuthPending for the given permission identifier.
func NewGate(required string) *Gate {
	return &Gate{required: required}
}

// Required returns the permission identifier this gate checks.
func (g *Gate) Required() string {
	return g.required
}

// Observe feeds the latest authorization fetch result into the state
// machine and returns the resulting state. A nil set means the fetch has
// not completed (or its result was invalidated), which always lands in
// AuthPending regardless of the previous state: entitlement is a pure
// projection of the most recent observation, never sticky.
func (g *Gate) Observe(set *domain.MenuSet) State {
	next := Evaluate(set, g.required)

	g.mu.Lock()
	g.state = next
	g.mu.Unlock()
	return next
}

// State returns the current entitlement state.
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// FetchEnabled reports whether the dependent data request may execute:
// entitlements are loaded and include the required item.
func (g *Gate) FetchEnabled() bool {
	return g.State() == Authorized
}

// DenialCommitted reports whether the gate has resolved to a denial. False
// while AuthPending: the UI shows a neutral loading state instead.
func (g *Gate) DenialCommitted() bool {
	return g.State() == Denied
}

// Evaluate is the stateless transition function: it maps one observation of
// the authorization set to a gate state.
func Evaluate(set *domain.MenuSet, required string) State {
	if set == nil {
		return AuthPending
	}
	if set.Contains(required) {
		return Authorized
	}
	return Denied
}
