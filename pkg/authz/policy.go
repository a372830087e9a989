package authz

// defaultPolicy grants console surfaces by role. Deployments override it via
// the authz.policy_file configuration key; the decision shape must stay
// {"authorized_menu_items": [...]}.
const defaultPolicy = `package console.menus

import rego.v1

role_grants := {
	"admin": {"Config", "Connections", "Plugins", "Stats"},
	"operator": {"Connections", "Plugins", "Stats"},
	"viewer": {"Stats"},
}

decision := {"authorized_menu_items": items} if {
	items := sort({item |
		some role in input.principal.roles
		some item in role_grants[role]
	})
}
`
