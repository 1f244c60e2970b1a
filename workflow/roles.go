package workflow

// Role is the closed set of user roles known to the procurement workflow.
type Role string

const (
	RoleSupervisor         Role = "supervisor"
	RoleEngineer           Role = "engineer"
	RoleProcurementManager Role = "procurement_manager"
	RoleGeneralManager     Role = "general_manager"
	RolePrinter            Role = "printer"
	RoleDeliveryTracker    Role = "delivery_tracker"
	RoleAdmin              Role = "admin"
)

var allRoles = []Role{
	RoleSupervisor,
	RoleEngineer,
	RoleProcurementManager,
	RoleGeneralManager,
	RolePrinter,
	RoleDeliveryTracker,
	RoleAdmin,
}

// Roles returns every known role.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole converts a raw claim or column value into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// OneOf reports whether r matches any of the given roles.
func (r Role) OneOf(roles ...Role) bool {
	for _, candidate := range roles {
		if r == candidate {
			return true
		}
	}
	return false
}
