package checkout

import (
	"context"
	"errors"
	"fmt"

	"herdshare-backend/internal/application/allocation"
	"herdshare-backend/internal/application/offerings"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/infrastructure/payments"
	"herdshare-backend/internal/pkg/ids"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service connects order placement with the payment collaborator.
type Service struct {
	Engine    *allocation.Engine
	Offerings *offerings.Service
	Gateway   payments.Gateway
}

type Request struct {
	BuyerID         uuid.UUID
	OfferingID      uuid.UUID
	Tokens          int64
	PaymentIntentID string
	Related         domain.RelatedRef
}

type Result struct {
	Order        *domain.Order `json:"order"`
	Replayed     bool          `json:"replayed"`
	ClientSecret string        `json:"client_secret,omitempty"`
}

// Checkout reserves tokens for a buyer. Without a payment intent one is created first and
// cancelled again if the reservation is rejected.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if req.Tokens <= 0 {
		return nil, domain.ErrInvalidTokens
	}
	if req.PaymentIntentID != "" {
		p, err := s.Engine.PlaceOrder(ctx, allocation.PlaceRequest{
			BuyerID:         req.BuyerID,
			OfferingID:      req.OfferingID,
			Tokens:          req.Tokens,
			PaymentIntentID: req.PaymentIntentID,
			Related:         req.Related,
		})
		if err != nil {
			return nil, err
		}
		return &Result{Order: p.Order, Replayed: p.Replayed}, nil
	}

	if s.Gateway == nil {
		return nil, payments.ErrGatewayNotConfigured
	}
	offering, err := s.Offerings.Get(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}

	orderNumber := ids.NewOrderNumber()
	intent, err := s.Gateway.CreateIntent(ctx, payments.IntentRequest{
		OrderNumber: orderNumber,
		Amount:      offering.AmountForTokens(req.Tokens),
		Currency:    offering.Currency,
		Metadata: map[string]string{
			"buyer_id":    req.BuyerID.String(),
			"offering_id": offering.OfferingID.String(),
			"tokens":      fmt.Sprintf("%d", req.Tokens),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	p, err := s.Engine.PlaceOrder(ctx, allocation.PlaceRequest{
		BuyerID:         req.BuyerID,
		OfferingID:      req.OfferingID,
		Tokens:          req.Tokens,
		PaymentIntentID: intent.ID,
		OrderNumber:     orderNumber,
		Related:         req.Related,
	})
	if err != nil {
		if cerr := s.Gateway.CancelIntent(ctx, intent.ID); cerr != nil {
			log.Error().Err(cerr).Str("payment_intent_id", intent.ID).Msg("checkout: cancel intent after rejection failed")
		}
		return nil, err
	}
	return &Result{Order: p.Order, Replayed: p.Replayed, ClientSecret: intent.ClientSecret}, nil
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
	OutcomeRefunded  Outcome = "refunded"
)

// Actions reported by ApplyOutcome.
const (
	ActionConfirmed     = "confirmed"
	ActionReleased      = "released"
	ActionRefunded      = "refunded"
	ActionLateRefund    = "late_payment_refunded"
	ActionIgnored       = "ignored"
	ActionUnknownIntent = "unknown_intent"
)

// ApplyOutcome routes an asynchronous payment callback. Callbacks may repeat or arrive out
// of order: a failure after success is ignored and a success after release is refunded.
func (s *Service) ApplyOutcome(ctx context.Context, intentID string, outcome Outcome) (string, error) {
	if intentID == "" {
		return "", domain.ErrPaymentIntentRequired
	}
	switch outcome {
	case OutcomeSucceeded:
		_, err := s.Engine.ConfirmByPaymentIntent(ctx, intentID)
		switch {
		case err == nil:
			return ActionConfirmed, nil
		case errors.Is(err, domain.ErrOrderNotFound):
			return ActionUnknownIntent, nil
		case errors.Is(err, domain.ErrOrderNotPending):
			if s.Gateway == nil {
				return "", payments.ErrGatewayNotConfigured
			}
			if rerr := s.Gateway.Refund(ctx, intentID); rerr != nil {
				return "", fmt.Errorf("refund late payment: %w", rerr)
			}
			log.Warn().Str("payment_intent_id", intentID).Msg("checkout: refunded payment for released order")
			return ActionLateRefund, nil
		default:
			return "", err
		}

	case OutcomeFailed, OutcomeCanceled:
		order, err := s.Engine.ReleaseByPaymentIntent(ctx, intentID, domain.ReleaseProviderFailure)
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			return ActionUnknownIntent, nil
		case err != nil:
			return "", err
		case order.Status == domain.OrderFailed:
			return ActionReleased, nil
		default:
			return ActionIgnored, nil
		}

	case OutcomeRefunded:
		order, err := s.Engine.Journal.FindByPaymentIntent(ctx, nil, intentID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			return ActionUnknownIntent, nil
		}
		if err != nil {
			return "", err
		}
		if order.Status != domain.OrderPaid && order.Status != domain.OrderRefunded {
			return ActionIgnored, nil
		}
		if _, err := s.Engine.RefundOrder(ctx, order.OrderNumber); err != nil {
			return "", err
		}
		return ActionRefunded, nil
	}
	return ActionIgnored, nil
}
