// Package session resolves who is behind a request or a browser and keeps
// that answer current as sign-in events arrive.
package session

// Role is what the site lets a visitor do.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleGuest     Role = "guest"
	RoleAdmin     Role = "admin"
)

func (r Role) String() string { return string(r) }

func (r Role) IsSignedIn() bool { return r == RoleGuest || r == RoleAdmin }

func (r Role) IsAdmin() bool { return r == RoleAdmin }
