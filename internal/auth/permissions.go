package auth

// Permission represents a named capability.
type Permission string

const (
	PermSessionRead    Permission = "session:read"
	PermSessionRestart Permission = "session:restart"
	PermHistoryRead    Permission = "history:read"
)

var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermSessionRead,
		PermHistoryRead,
	},
	RoleOperator: {
		PermSessionRead,
		PermSessionRestart,
		PermHistoryRead,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
