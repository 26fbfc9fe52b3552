package domain

import (
	"fmt"
	"strings"
)

// Role is a member's role within a company.
type Role string

// Role constants, highest privilege first.
const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RolePM     Role = "PM"
	RoleWorker Role = "WORKER"
	RoleViewer Role = "VIEWER"
)

var roleRank = map[Role]int{
	RoleOwner:  5,
	RoleAdmin:  4,
	RolePM:     3,
	RoleWorker: 2,
	RoleViewer: 1,
}

// ValidRoles returns every role, highest privilege first.
func ValidRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RolePM, RoleWorker, RoleViewer}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r carries at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && roleRank[r] >= roleRank[other]
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts s into a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
