// Package menu classifies plugin-contributed navigation entries into a
// renderable menu tree of depth two: top-level buttons and one level of
// category submenus.
//
// Plugin manifests are external input, so the package never trusts their
// shape. Decode turns a raw value into a validated item list or a defined
// "no menu" result; it does not return errors because a malformed menu must
// degrade to silence, not to an error surface.
package menu

// Item is one plugin-contributed navigation entry. A nil Href marks a pure
// category label; a nil Category marks a top-level button. Name is expected
// to be unique among siblings under the same parent.
type Item struct {
	Name     string  `json:"name"`
	Href     *string `json:"href"`
	Category *string `json:"category"`
}

// Actionable reports whether the item can be rendered as a clickable link.
func (i Item) Actionable() bool {
	return i.Href != nil && *i.Href != ""
}

// Group is the ordered sequence of items sharing one category, in arrival
// order.
type Group struct {
	Name  string
	Items []Item
}

// Menu is the partitioned navigation tree. TopLevel preserves arrival order;
// Groups preserves the order in which categories were first encountered.
type Menu struct {
	TopLevel []Item
	Groups   []Group
}

// Decode validates a raw configuration value against the expected menu
// shape: a sequence whose every element carries name, href and category,
// where href and category may be null. The second return value is false when
// the value does not conform; callers must treat that as "no menu to
// render", never as an error.
func Decode(v any) ([]Item, bool) {
	seq, ok := v.([]any)
	if !ok {
		return nil, false
	}

	items := make([]Item, 0, len(seq))
	for _, elem := range seq {
		item, ok := decodeItem(elem)
		if !ok {
			return nil, false
		}
		items = append(items, item)
	}
	return items, true
}

func decodeItem(elem any) (Item, bool) {
	fields, ok := elem.(map[string]any)
	if !ok {
		return Item{}, false
	}

	// All three attributes must be present, even when null.
	for _, key := range []string{"name", "href", "category"} {
		if _, present := fields[key]; !present {
			return Item{}, false
		}
	}

	name, ok := fields["name"].(string)
	if !ok || name == "" {
		return Item{}, false
	}

	href, ok := optionalString(fields["href"])
	if !ok {
		return Item{}, false
	}
	category, ok := optionalString(fields["category"])
	if !ok {
		return Item{}, false
	}

	return Item{Name: name, Href: href, Category: category}, true
}

func optionalString(v any) (*string, bool) {
	if v == nil {
		return nil, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

// Aggregate partitions items in a single stable pass: an item with a
// category joins that category's group, creating the group at the position
// of first sight; anything else becomes a top-level button. An entirely
// empty partition yields nil so callers never render an empty menu shell.
//
// Aggregate is a pure function of its input; running it twice on the same
// items produces identical grouping and ordering.
func Aggregate(items []Item) *Menu {
	m := &Menu{}
	groupIndex := make(map[string]int)

	for _, item := range items {
		// An empty category string behaves like an absent one; the
		// upstream data uses null as the only sentinel but manifests
		// written by hand occasionally leave the field blank.
		if item.Category == nil || *item.Category == "" {
			m.TopLevel = append(m.TopLevel, item)
			continue
		}

		name := *item.Category
		idx, seen := groupIndex[name]
		if !seen {
			idx = len(m.Groups)
			m.Groups = append(m.Groups, Group{Name: name})
			groupIndex[name] = idx
		}
		m.Groups[idx].Items = append(m.Groups[idx].Items, item)
	}

	if len(m.TopLevel) == 0 && len(m.Groups) == 0 {
		return nil
	}
	return m
}

// Build combines Decode and Aggregate: raw value in, renderable menu or nil
// out.
func Build(v any) *Menu {
	items, ok := Decode(v)
	if !ok {
		return nil
	}
	return Aggregate(items)
}

// Link is an actionable rendered entry.
type Link struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// RenderedGroup is a category submenu. Links may be empty: a category whose
// items all lack hrefs still renders as a submenu trigger, matching the
// observed console behaviour.
type RenderedGroup struct {
	Name  string `json:"name"`
	Links []Link `json:"links"`
}

// Rendered is the projection of a Menu that the API returns: only actionable
// items survive, at the top level and inside groups alike.
type Rendered struct {
	Buttons []Link          `json:"buttons"`
	Groups  []RenderedGroup `json:"groups"`
}

// Render projects the menu onto its actionable surface. A nil menu renders
// to nil.
func (m *Menu) Render() *Rendered {
	if m == nil {
		return nil
	}

	r := &Rendered{}
	for _, item := range m.TopLevel {
		if item.Actionable() {
			r.Buttons = append(r.Buttons, Link{Name: item.Name, Href: *item.Href})
		}
	}
	for _, group := range m.Groups {
		rendered := RenderedGroup{Name: group.Name}
		for _, item := range group.Items {
			if item.Actionable() {
				rendered.Links = append(rendered.Links, Link{Name: item.Name, Href: *item.Href})
			}
		}
		r.Groups = append(r.Groups, rendered)
	}
	return r
}
