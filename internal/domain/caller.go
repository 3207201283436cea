package domain

// Roles carried by JWT claims.
const (
	RoleUser     = "user"
	RoleSeller   = "seller"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// Caller identifies who is driving a chat turn. The zero value is an
// anonymous caller; every code path that touches history or tools must
// check Authenticated first.
type Caller struct {
	UserID string
	Role   string
}

// AnonymousCaller returns a caller with no identity.
func AnonymousCaller() Caller {
	return Caller{}
}

// AuthenticatedCaller returns a caller resolved from a verified token.
func AuthenticatedCaller(userID, role string) Caller {
	return Caller{UserID: userID, Role: role}
}

// Authenticated reports whether the caller has a verified identity.
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// IsSeller reports whether the caller sells products in the catalog.
func (c Caller) IsSeller() bool {
	return c.Role == RoleSeller
}
