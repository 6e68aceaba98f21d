package enums

import "fmt"

// UserRole describes what a back-office user may do.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor"
	UserRoleViewer UserRole = "viewer"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleEditor,
	UserRoleViewer,
}

// String returns the literal string for the role.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the role is known.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// CanWrite reports whether the role may mutate catalog data.
func (u UserRole) CanWrite() bool {
	return u == UserRoleAdmin || u == UserRoleEditor
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
