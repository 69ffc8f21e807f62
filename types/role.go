package types

import (
	"fmt"
	"strings"
)

// Role is the authorization level attached to a profile.
// Roles are totally ordered: user < admin < superadmin.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuperAdmin:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() > 0
}

// AtLeast reports whether r grants at least the privileges of min.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.rank() >= min.rank()
}

// Privileged reports whether r is admin or superadmin.
func (r Role) Privileged() bool {
	return r.AtLeast(RoleAdmin)
}

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", raw)
	}
	return role, nil
}
