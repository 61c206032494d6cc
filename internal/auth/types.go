package auth

import "errors"

// Role is the access level carried in a token.
type Role string

const (
	// RoleViewer may read sessions and history.
	RoleViewer Role = "viewer"
	// RoleOperator may additionally restart sessions.
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleOperator
}

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrForbidden    = errors.New("insufficient permissions")
	ErrUnknownRole  = errors.New("unknown role")
)
