package enums

import "fmt"

// UserRole is the application role copied from the identity provider metadata.
type UserRole string

const (
	UserRoleOwner UserRole = "owner"
	UserRoleUser  UserRole = "user"
)

var validUserRoles = []UserRole{
	UserRoleOwner,
	UserRoleUser,
}

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
