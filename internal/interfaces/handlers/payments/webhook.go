package payments

import (
	"encoding/json"
	"fmt"

	"herdshare-backend/internal/application/checkout"
	"herdshare-backend/internal/interfaces/httperr"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookHandler struct {
	Checkout      *checkout.Service
	WebhookSecret string
}

// outcomes maps the Stripe event types we act on.
var outcomes = map[string]checkout.Outcome{
	"payment_intent.succeeded":      checkout.OutcomeSucceeded,
	"payment_intent.payment_failed": checkout.OutcomeFailed,
	"payment_intent.canceled":       checkout.OutcomeCanceled,
	"charge.refunded":               checkout.OutcomeRefunded,
}

// HandleWebhook POST /api/v1/stripe/webhook: raw body, signature verification, then process.
// Domain errors still answer 200 so Stripe does not retry; infrastructure errors answer 500.
func (wh *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	rawBody := c.BodyRaw()
	sig := c.Get("Stripe-Signature")

	if len(rawBody) == 0 {
		log.Warn().Msg("Stripe webhook received empty body (ensure no global body parser consumes the webhook body)")
		return c.Status(400).SendString("Webhook Error: empty body")
	}

	event, err := webhook.ConstructEventWithOptions(rawBody, sig, wh.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warn().Err(err).Bool("has_sig", sig != "").Bool("has_secret", wh.WebhookSecret != "").Msg("Stripe webhook signature verification failed")
		return c.Status(400).SendString(fmt.Sprintf("Webhook Error: %s", err.Error()))
	}

	outcome, ok := outcomes[string(event.Type)]
	if !ok || event.Data == nil {
		return c.Status(200).SendString("ok")
	}
	intentID, err := paymentIntentID(string(event.Type), event.Data.Raw)
	if err != nil || intentID == "" {
		log.Warn().Err(err).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Stripe webhook without payment intent")
		return c.Status(200).SendString("ok")
	}

	action, err := wh.Checkout.ApplyOutcome(c.UserContext(), intentID, outcome)
	if err != nil {
		// 4xx mappings are outcomes a redelivery cannot change.
		if status := httperr.Status(err); status >= 400 && status < 500 {
			log.Warn().Err(err).Str("event_id", event.ID).Str("payment_intent_id", intentID).Msg("Stripe webhook rejected by allocation")
			return c.Status(200).SendString("ok")
		}
		log.Error().Err(err).Str("event_id", event.ID).Str("payment_intent_id", intentID).Msg("Stripe webhook processing failed")
		return c.Status(500).SendString("Webhook Error: processing failed")
	}
	log.Info().Str("event_id", event.ID).Str("type", string(event.Type)).Str("payment_intent_id", intentID).Str("action", action).Msg("Stripe webhook processed")
	return c.Status(200).SendString("ok")
}

func paymentIntentID(eventType string, raw json.RawMessage) (string, error) {
	if eventType == "charge.refunded" {
		var ch stripe.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return "", err
		}
		if ch.PaymentIntent == nil {
			return "", nil
		}
		return ch.PaymentIntent.ID, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return "", err
	}
	return pi.ID, nil
}
