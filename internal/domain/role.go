package domain

// Role is the coarse-grained role carried in access tokens.
type Role string

// Role constants define the allowed principal roles.
const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRoles returns the set of valid principal roles.
func ValidRoles() []Role {
	return []Role{RoleGuest, RoleUser, RoleAdmin}
}

// IsValidRole checks whether the given string is a valid role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
