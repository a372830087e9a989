package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/flowmatic/console/pkg/domain"
)

func TestGateStartsPending(t *testing.T) {
	g := NewGate("Config")

	assert.Equal(t, AuthPending, g.State())
	assert.False(t, g.FetchEnabled(), "fetch must not fire before authorization loads")
	assert.False(t, g.DenialCommitted(), "no denial may render before authorization loads")
}

func TestGatePendingRegardlessOfIdentifier(t *testing.T) {
	for _, required := range []string{"Config", "Plugins", "Nonexistent"} {
		g := NewGate(required)
		g.Observe(nil)
		assert.False(t, g.FetchEnabled(), "identifier %q", required)
		assert.False(t, g.DenialCommitted(), "identifier %q", required)
	}
}

func TestGateAuthorized(t *testing.T) {
	g := NewGate("Config")
	state := g.Observe(&domain.MenuSet{AuthorizedMenuItems: []string{"Config"}})

	assert.Equal(t, Authorized, state)
	assert.True(t, g.FetchEnabled())
	assert.False(t, g.DenialCommitted())
}

func TestGateDenied(t *testing.T) {
	g := NewGate("Plugins")
	state := g.Observe(&domain.MenuSet{AuthorizedMenuItems: []string{"Config"}})

	assert.Equal(t, Denied, state)
	assert.False(t, g.FetchEnabled())
	assert.True(t, g.DenialCommitted())
}

func TestGateTransitionTable(t *testing.T) {
	granted := &domain.MenuSet{AuthorizedMenuItems: []string{"Config"}}
	revoked := &domain.MenuSet{AuthorizedMenuItems: []string{"Stats"}}

	cases := []struct {
		name string
		from *domain.MenuSet
		to   *domain.MenuSet
		want State
	}{
		{"pending to authorized", nil, granted, Authorized},
		{"pending to denied", nil, revoked, Denied},
		{"authorized back to pending", granted, nil, AuthPending},
		{"authorized to denied on revocation", granted, revoked, Denied},
		{"denied to authorized on grant", revoked, granted, Authorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate("Config")
			g.Observe(tc.from)
			assert.Equal(t, tc.want, g.Observe(tc.to))
		})
	}
}

func TestEvaluateMatchesObserveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nameGen := rapid.StringMatching(`[A-Za-z]{1,10}`)
		required := nameGen.Draw(t, "required")

		var set *domain.MenuSet
		if rapid.Bool().Draw(t, "loaded") {
			set = &domain.MenuSet{
				AuthorizedMenuItems: rapid.SliceOfN(nameGen, 0, 10).Draw(t, "items"),
			}
		}

		g := NewGate(required)
		state := g.Observe(set)

		assert.Equal(t, Evaluate(set, required), state)
		assert.Equal(t, state, g.State())

		// The two derived predicates are mutually exclusive and only ever
		// true once the set has loaded.
		if set == nil {
			assert.Equal(t, AuthPending, state)
		}
		assert.False(t, g.FetchEnabled() && g.DenialCommitted())
	})
}
