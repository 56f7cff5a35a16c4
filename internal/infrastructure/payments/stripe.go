package payments

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
)

// StripeGateway uses the Stripe Go SDK for PaymentIntents and refunds.
type StripeGateway struct {
	SecretKey string
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if g.SecretKey == "" {
		return nil, ErrGatewayNotConfigured
	}
	stripe.Key = g.SecretKey
	metadata := map[string]string{"order_number": req.OrderNumber}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount, req.Currency)),
		Currency: stripe.String(req.Currency),
		Metadata: metadata,
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("intent-" + req.OrderNumber)
	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	if g.SecretKey == "" {
		return ErrGatewayNotConfigured
	}
	stripe.Key = g.SecretKey
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(intentID, params)
	return err
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	if g.SecretKey == "" {
		return ErrGatewayNotConfigured
	}
	stripe.Key = g.SecretKey
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + intentID)
	_, err := refund.New(params)
	return err
}
