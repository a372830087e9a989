package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func strptr(s string) *string { return &s }

func rawItem(name string, href, category any) map[string]any {
	return map[string]any{"name": name, "href": href, "category": category}
}

func TestDecodeRejectsNonSequence(t *testing.T) {
	cases := []struct {
		name  string
		input any
	}{
		{"nil", nil},
		{"string", "menu"},
		{"number", 42},
		{"map", map[string]any{"name": "A"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, ok := Decode(tc.input)
			assert.False(t, ok)
			assert.Nil(t, items)
		})
	}
}

func TestDecodeRejectsMalformedElements(t *testing.T) {
	cases := []struct {
		name  string
		input []any
	}{
		{"missing name", []any{map[string]any{"href": "x", "category": nil}}},
		{"missing href", []any{map[string]any{"name": "A", "category": nil}}},
		{"missing category", []any{map[string]any{"name": "A", "href": "x"}}},
		{"name not a string", []any{map[string]any{"name": 7, "href": "x", "category": nil}}},
		{"href wrong type", []any{rawItem("A", 12, nil)}},
		{"category wrong type", []any{rawItem("A", "x", true)}},
		{"element not a map", []any{"A"}},
		{"empty name", []any{rawItem("", "x", nil)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Decode(tc.input)
			assert.False(t, ok, "malformed input must yield the no-menu result")
		})
	}
}

func TestDecodeAcceptsNullSentinels(t *testing.T) {
	items, ok := Decode([]any{rawItem("A", nil, nil), rawItem("B", "y", "G")})
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Nil(t, items[0].Href)
	assert.Nil(t, items[0].Category)
	require.NotNil(t, items[1].Href)
	assert.Equal(t, "y", *items[1].Href)
	require.NotNil(t, items[1].Category)
	assert.Equal(t, "G", *items[1].Category)
}

func TestAggregateEmptyInputYieldsNothing(t *testing.T) {
	assert.Nil(t, Aggregate(nil))
	assert.Nil(t, Aggregate([]Item{}))
}

func TestAggregatePartitionsInOrder(t *testing.T) {
	items := []Item{
		{Name: "A", Href: strptr("x")},
		{Name: "B", Href: strptr("y"), Category: strptr("G")},
		{Name: "C", Href: strptr("z"), Category: strptr("G")},
	}

	m := Aggregate(items)
	require.NotNil(t, m)

	require.Len(t, m.TopLevel, 1)
	assert.Equal(t, "A", m.TopLevel[0].Name)

	require.Len(t, m.Groups, 1)
	assert.Equal(t, "G", m.Groups[0].Name)
	require.Len(t, m.Groups[0].Items, 2)
	assert.Equal(t, "B", m.Groups[0].Items[0].Name)
	assert.Equal(t, "C", m.Groups[0].Items[1].Name)
}

func TestAggregateCategoryOrderIsFirstSeen(t *testing.T) {
	items := []Item{
		{Name: "1", Href: strptr("a"), Category: strptr("Z")},
		{Name: "2", Href: strptr("b"), Category: strptr("A")},
		{Name: "3", Href: strptr("c"), Category: strptr("Z")},
	}

	m := Aggregate(items)
	require.NotNil(t, m)
	require.Len(t, m.Groups, 2)
	assert.Equal(t, "Z", m.Groups[0].Name)
	assert.Equal(t, "A", m.Groups[1].Name)
	assert.Len(t, m.Groups[0].Items, 2)
	assert.Len(t, m.Groups[1].Items, 1)
}

func TestRenderOmitsItemsWithoutHref(t *testing.T) {
	items := []Item{
		{Name: "NoLink"},
		{Name: "Link", Href: strptr("/x")},
		{Name: "GroupNoLink", Category: strptr("G")},
		{Name: "GroupLink", Href: strptr("/y"), Category: strptr("G")},
	}

	r := Aggregate(items).Render()
	require.NotNil(t, r)

	require.Len(t, r.Buttons, 1)
	assert.Equal(t, Link{Name: "Link", Href: "/x"}, r.Buttons[0])

	require.Len(t, r.Groups, 1)
	require.Len(t, r.Groups[0].Links, 1)
	assert.Equal(t, Link{Name: "GroupLink", Href: "/y"}, r.Groups[0].Links[0])
}

func TestRenderKeepsEmptyGroupTrigger(t *testing.T) {
	// A category whose items all lack hrefs still renders as a submenu
	// trigger. Deliberate faithful reproduction of the console behaviour.
	items := []Item{
		{Name: "Dead", Category: strptr("Ghost")},
	}

	r := Aggregate(items).Render()
	require.NotNil(t, r)
	require.Len(t, r.Groups, 1)
	assert.Equal(t, "Ghost", r.Groups[0].Name)
	assert.Empty(t, r.Groups[0].Links)
}

func TestRenderNilMenu(t *testing.T) {
	var m *Menu
	assert.Nil(t, m.Render())
}

func TestBuildMalformedInputIsSilent(t *testing.T) {
	assert.Nil(t, Build("not a menu"))
	assert.Nil(t, Build([]any{}))
}

func drawItems(t *rapid.T) []Item {
	nameGen := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,15}`)
	return rapid.SliceOfN(rapid.Custom(func(t *rapid.T) Item {
		item := Item{Name: nameGen.Draw(t, "name")}
		if rapid.Bool().Draw(t, "has_href") {
			item.Href = strptr("/" + nameGen.Draw(t, "href"))
		}
		if rapid.Bool().Draw(t, "has_category") {
			item.Category = strptr(nameGen.Draw(t, "category"))
		}
		return item
	}), 0, 50).Draw(t, "items")
}

func TestAggregateIsIdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := drawItems(t)

		first := Aggregate(items)
		second := Aggregate(items)
		assert.Equal(t, first, second, "aggregation must be a pure function of its input")
	})
}

func TestAggregateConservesItemsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := drawItems(t)

		m := Aggregate(items)
		if len(items) == 0 {
			assert.Nil(t, m)
			return
		}
		require.NotNil(t, m)

		total := len(m.TopLevel)
		for _, g := range m.Groups {
			total += len(g.Items)
		}
		assert.Equal(t, len(items), total, "every input item lands in exactly one bucket")
	})
}

func TestAggregatePreservesArrivalOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := drawItems(t)
		m := Aggregate(items)
		if m == nil {
			return
		}

		// Reconstructing the input order from the buckets must match the
		// original sequence: a stable bucket-by-key never reorders within
		// a bucket, and group order is first-seen.
		cursor := map[string]int{}
		topCursor := 0
		for _, item := range items {
			if item.Category == nil || *item.Category == "" {
				require.Less(t, topCursor, len(m.TopLevel))
				assert.Equal(t, item, m.TopLevel[topCursor])
				topCursor++
				continue
			}
			name := *item.Category
			idx := -1
			for i, g := range m.Groups {
				if g.Name == name {
					idx = i
					break
				}
			}
			require.GreaterOrEqual(t, idx, 0, "group %q must exist", name)
			pos := cursor[name]
			require.Less(t, pos, len(m.Groups[idx].Items))
			assert.Equal(t, item, m.Groups[idx].Items[pos])
			cursor[name] = pos + 1
		}
	})
}
