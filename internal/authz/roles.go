// Package authz implements the bearer-token boundary and the closed role
// model used by every API route.
package authz

import "fmt"

// Role is the closed set of roles known to the system. The loose roles array
// of the legacy client is gone; anything outside this enum is rejected at the
// boundary.
type Role string

const (
	RoleGod   Role = "GOD"
	RoleAdmin Role = "ADMIN"
	RoleArea  Role = "AREA"
)

// ParseRole validates a stored role value.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGod, RoleAdmin, RoleArea:
		return Role(s), nil
	}
	return "", fmt.Errorf("authz: unknown role %q", s)
}

// Principal describes the authenticated caller of a request.
type Principal struct {
	TokenID string
	Usuario string
	Role    Role
	Area    string
}

// Allows reports whether the principal satisfies any of the given roles.
// GOD passes every check.
func (p Principal) Allows(roles ...Role) bool {
	if p.Role == RoleGod {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
