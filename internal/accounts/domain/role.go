package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ErrUnknownRole is returned by ParseRoleName for names outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// RoleName is one of the fixed roles a user can hold.
type RoleName string

const (
	RoleAdmin RoleName = "Admin"
	RoleUser  RoleName = "User"
)

// RoleNames lists every valid role.
var RoleNames = []RoleName{RoleAdmin, RoleUser}

// ParseRoleName matches s case-insensitively against the known roles.
func ParseRoleName(s string) (RoleName, error) {
	s = strings.TrimSpace(s)
	for _, r := range RoleNames {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

func (r RoleName) String() string { return string(r) }

// Role is a stored role row. Rows are created lazily the first time a user is
// assigned to them.
type Role struct {
	ID        string
	Name      RoleName
	CreatedAt time.Time
}

// RoleMembership pairs a role with the number of users holding it.
type RoleMembership struct {
	Role    Role
	Members int
}

// RoleSet is the set of roles held by one user.
type RoleSet map[RoleName]struct{}

// NewRoleSet builds a set from names.
func NewRoleSet(names ...RoleName) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership. A nil set holds nothing.
func (s RoleSet) Has(name RoleName) bool {
	_, ok := s[name]
	return ok
}

// Names returns the members in a stable order.
func (s RoleSet) Names() []RoleName {
	out := make([]RoleName, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
