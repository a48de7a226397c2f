package domain

// Identity is the principal attached to a request after session resolution.
// A nil *Identity is the anonymous principal.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	SessionID   string
	Roles       RoleSet
}

// IsAnonymous is safe to call on a nil receiver.
func (i *Identity) IsAnonymous() bool {
	return i == nil
}

// HasRole is false for the anonymous principal.
func (i *Identity) HasRole(name RoleName) bool {
	if i == nil {
		return false
	}
	return i.Roles.Has(name)
}
