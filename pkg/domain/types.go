package domain

import "time"

// Principal identifies the caller on whose behalf console requests are made.
// Authentication happens upstream; the gateway trusts the identity a fronting
// proxy injects and only decides what that identity may see.
type Principal struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
}

// MenuSet is the set of console surface names the principal is permitted to
// see. It is the unit the access gate checks panel permissions against.
type MenuSet struct {
	AuthorizedMenuItems []string `json:"authorized_menu_items"`
}

// Contains reports whether the named surface is a member of the set.
func (s MenuSet) Contains(name string) bool {
	for _, item := range s.AuthorizedMenuItems {
		if item == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no state with the receiver.
func (s MenuSet) Clone() MenuSet {
	return MenuSet{AuthorizedMenuItems: append([]string(nil), s.AuthorizedMenuItems...)}
}

// Snapshot is a point-in-time view of the plugin-contributed menu
// configuration. RawMenu deliberately stays untyped: plugin manifests are
// external input and shape validation belongs to the menu package, not the
// loader.
type Snapshot struct {
	Generation int64
	LoadedAt   time.Time
	RawMenu    any
}
