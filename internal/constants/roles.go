package constants

const (
	Superadmin = "superadmin"
	Admin      = "admin"
	Manager    = "manager"
	Buyer      = "buyer"
)

// ValidRoles is the set of roles the identity service may put in a session.
var ValidRoles = []string{Buyer, Manager, Admin, Superadmin}

// IsValidRole returns true if role is one of ValidRoles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ActsForOthers reports whether role may place or read orders on behalf of other buyers.
func ActsForOthers(role string) bool {
	return role == Manager || role == Admin || role == Superadmin
}
