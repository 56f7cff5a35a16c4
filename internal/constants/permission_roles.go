package constants

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewOfferings:   {Buyer, Manager, Admin, Superadmin},
	PlaceOrders:     {Buyer, Manager, Admin, Superadmin},
	ViewOrders:      {Buyer, Manager, Admin, Superadmin},
	ViewHoldings:    {Buyer, Manager, Admin, Superadmin},
	ConfirmPayments: {Manager, Admin, Superadmin},
	ReleaseOrders:   {Manager, Admin, Superadmin},
	ManageCatalog:   {Admin, Superadmin},
	ManageTagPool:   {Admin, Superadmin},
	AuditHoldings:   {Admin, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
