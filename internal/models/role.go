package models

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Capability is a single permission checked by handlers and services.
type Capability string

const (
	// CapManageCategories covers create/update/delete/reorder/recount of categories.
	CapManageCategories Capability = "categories:manage"
	// CapModerateListings allows overriding listing status.
	CapModerateListings Capability = "listings:moderate"
	// CapViewHiddenListings allows reading non-active or expired listings of other users.
	CapViewHiddenListings Capability = "listings:view_hidden"
	// CapEditAnyListing allows editing, extending and deleting listings of other users.
	CapEditAnyListing Capability = "listings:edit_any"
	// CapViewAllStatuses lets the listing index filter by any status.
	CapViewAllStatuses Capability = "listings:all_statuses"
)

var capabilities = map[Role]map[Capability]bool{
	RoleUser: {},
	RoleModerator: {
		CapModerateListings:   true,
		CapViewHiddenListings: true,
		CapViewAllStatuses:    true,
	},
	RoleAdmin: {
		CapManageCategories:   true,
		CapModerateListings:   true,
		CapViewHiddenListings: true,
		CapEditAnyListing:     true,
		CapViewAllStatuses:    true,
	},
}

// Can reports whether the role grants the capability. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// ParseRole returns the role for s, or an error for anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
