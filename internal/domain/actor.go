package domain

// Roles recognised by the authorization layer.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated caller as seen by the engine: an identity and a role.
type Actor struct {
	ID          int64
	Role        string
	Permissions []string
}

// IsAdmin reports whether the actor has the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
