package constants

const (
	ViewOfferings   = "view_offerings"
	PlaceOrders     = "place_orders"
	ViewOrders      = "view_orders"
	ViewHoldings    = "view_holdings"
	ConfirmPayments = "confirm_payments"
	ReleaseOrders   = "release_orders"
	ManageCatalog   = "manage_catalog"
	ManageTagPool   = "manage_tag_pool"
	AuditHoldings   = "audit_holdings"
)
