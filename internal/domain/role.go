package domain

// Role constants define the allowed user roles, ordered from most to least
// privileged.
const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleAdmin        = "ADMIN"
	RoleSalesManager = "SALES_MANAGER"
	RoleSalesRep     = "SALES_REP"
)

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleSalesManager, RoleSalesRep}
}

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if r == role {
			return true
		}
	}
	return false
}
