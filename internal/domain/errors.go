package domain

import "errors"

var (
	ErrInvalidCapacity         = errors.New("Invalid offering capacity")
	ErrOfferingClosed          = errors.New("Offering is closed")
	ErrOfferingNotLive         = errors.New("Offering is not live yet")
	ErrOrderExceedsTagCapacity = errors.New("Order exceeds remaining tag capacity")
	ErrCapacityExhausted       = errors.New("Offering capacity exhausted")
	ErrPaymentMismatch         = errors.New("Payment intent does not match order")
	ErrPaymentIntentRequired   = errors.New("payment_intent_id is required")
	ErrInvalidTokens           = errors.New("Tokens must be a positive integer")
	ErrOfferingNotFound        = errors.New("Offering not found")
	ErrAssetNotFound           = errors.New("Asset not found")
	ErrOrderNotFound           = errors.New("Order not found")
	ErrHoldingNotFound         = errors.New("Holding not found")
	ErrOrderNotPending         = errors.New("Order is no longer pending")
	ErrOrderNotPaid            = errors.New("Order is not paid")
	ErrReservationActive       = errors.New("Reservation has not expired")
	ErrTagPoolEmpty            = errors.New("No pre-generated tags available for country")
	ErrHoldingConflict         = errors.New("Holding was modified concurrently")
	ErrInvalidAssetType        = errors.New("Invalid asset type")
	ErrInvalidCountryCode      = errors.New("Invalid country code")
	ErrInvalidCurrency         = errors.New("Invalid currency")
	ErrInvalidReleaseReason    = errors.New("Invalid release reason")
)

// IsRejection reports whether err is a caller-facing allocation rejection
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrOfferingClosed, ErrOfferingNotLive, ErrOrderExceedsTagCapacity,
		ErrCapacityExhausted, ErrOfferingNotFound, ErrInvalidTokens, ErrTagPoolEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Code returns a stable machine-readable code for domain errors.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, ErrOfferingClosed):
		return "offering_closed"
	case errors.Is(err, ErrOfferingNotLive):
		return "offering_not_live"
	case errors.Is(err, ErrOrderExceedsTagCapacity):
		return "order_exceeds_tag_capacity"
	case errors.Is(err, ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, ErrPaymentMismatch):
		return "payment_mismatch"
	case errors.Is(err, ErrTagPoolEmpty):
		return "tag_pool_empty"
	case errors.Is(err, ErrInvalidTokens):
		return "invalid_tokens"
	case errors.Is(err, ErrOfferingNotFound):
		return "offering_not_found"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, ErrHoldingNotFound):
		return "holding_not_found"
	case errors.Is(err, ErrOrderNotPending):
		return "order_not_pending"
	case errors.Is(err, ErrOrderNotPaid):
		return "order_not_paid"
	case errors.Is(err, ErrReservationActive):
		return "reservation_active"
	case errors.Is(err, ErrPaymentIntentRequired):
		return "payment_intent_required"
	case errors.Is(err, ErrHoldingConflict):
		return "holding_conflict"
	case errors.Is(err, ErrInvalidAssetType):
		return "invalid_asset_type"
	case errors.Is(err, ErrInvalidCountryCode):
		return "invalid_country_code"
	case errors.Is(err, ErrInvalidCurrency):
		return "invalid_currency"
	case errors.Is(err, ErrInvalidReleaseReason):
		return "invalid_release_reason"
	case errors.Is(err, ErrInvalidRelated):
		return "invalid_related"
	}
	return "internal"
}
