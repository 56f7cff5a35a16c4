package payments

import (
	"context"
	"errors"

	"herdshare-backend/internal/pkg/validation"

	"github.com/shopspring/decimal"
)

var ErrGatewayNotConfigured = errors.New("Payment gateway not configured")

// IntentRequest describes the charge the buyer must authorize for one order.
type IntentRequest struct {
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Metadata    map[string]string
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Gateway is the payment capture collaborator. Outcomes arrive later through the webhook.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, intentID string) error
}

// MinorUnits converts a decimal amount into the currency's minor unit. Offerings only
// accept token prices in whole minor units, so the shift is exact for order amounts.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(validation.CurrencyExponent(validation.NormalizeCurrency(currency))).Round(0).IntPart()
}
