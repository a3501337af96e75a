package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleSupport    = "support"
	RoleSupervisor = "supervisor"
	RoleAuditor    = "auditor"
	RoleAdmin      = "admin"
	RoleAutomation = "automation" // hidden role
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsHiddenRole(role string) bool { return role == RoleAutomation }
