package domain

// Role enumerates the roles carried by identity-provider principals.
type Role string

const (
	RoleRequester  Role = "requester"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated actor supplied by the identity provider.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// IsTechnician reports whether the principal has the technician role.
func (p Principal) IsTechnician() bool {
	return p.Role == RoleTechnician
}
