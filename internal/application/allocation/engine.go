package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"herdshare-backend/internal/application/holdings"
	"herdshare-backend/internal/application/journal"
	"herdshare-backend/internal/application/offerings"
	"herdshare-backend/internal/application/tagpool"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/infrastructure/events"
	"herdshare-backend/internal/infrastructure/locker"
	"herdshare-backend/internal/obs"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/pkg/ids"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultReservationTTL is how long a pending order holds its tokens.
const DefaultReservationTTL = 15 * time.Minute

// Engine allocates offering capacity to orders. All tag mutations for one offering run
// under that offering's lock and inside a transaction holding its row lock.
type Engine struct {
	DB             *gorm.DB
	Clock          clock.Clock
	Locker         locker.Locker
	Tags           *tagpool.Service
	Journal        *journal.Journal
	Holdings       *holdings.Ledger
	Events         events.Publisher
	ReservationTTL time.Duration
}

type PlaceRequest struct {
	BuyerID         uuid.UUID
	OfferingID      uuid.UUID
	Tokens          int64
	PaymentIntentID string
	OrderNumber     string
	Related         domain.RelatedRef
}

// Placement is the result of PlaceOrder. Replayed is set when the payment intent had
// already produced an order, which is returned unchanged.
type Placement struct {
	Order    *domain.Order `json:"order"`
	Replayed bool          `json:"replayed"`
}

func lockKey(offeringID uuid.UUID) string {
	return "offering:" + offeringID.String()
}

func (e *Engine) now() time.Time {
	return clock.OrReal(e.Clock).Now()
}

func (e *Engine) ttl() time.Duration {
	if e.ReservationTTL <= 0 {
		return DefaultReservationTTL
	}
	return e.ReservationTTL
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.Events == nil {
		return
	}
	if err := e.Events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Str("order_number", ev.OrderNumber).Msg("allocation: publish event failed")
	}
}

func (e *Engine) record(ctx context.Context, tx *gorm.DB, entry journal.Entry) {
	if err := e.Journal.RecordAttempt(ctx, tx, entry); err != nil {
		log.Error().Err(err).Str("event_type", string(entry.Type)).Str("payment_intent_id", entry.PaymentIntentID).Msg("allocation: journal write failed")
	}
}

// PlaceOrder reserves tokens in the offering's open tag and creates a pending order.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceRequest) (*Placement, error) {
	start := time.Now()
	defer func() { obs.PlaceDuration.Observe(time.Since(start).Seconds()) }()

	if req.PaymentIntentID == "" {
		return nil, domain.ErrPaymentIntentRequired
	}
	if req.Tokens <= 0 {
		return nil, domain.ErrInvalidTokens
	}
	if err := req.Related.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.Journal.FindByPaymentIntent(ctx, nil, req.PaymentIntentID)
	if err == nil {
		return e.replay(ctx, existing, req)
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	unlock, err := e.Locker.Lock(ctx, lockKey(req.OfferingID))
	if err != nil {
		return nil, fmt.Errorf("lock offering: %w", err)
	}
	defer unlock()

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = ids.NewOrderNumber()
	}

	var (
		order     *domain.Order
		tag       *domain.ShareTag
		duplicate *domain.Order
	)
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prior, err := e.Journal.FindByPaymentIntent(ctx, tx, req.PaymentIntentID)
		if err == nil {
			duplicate = prior
			return nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return err
		}

		var offering domain.Offering
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("offering_id = ?", req.OfferingID).
			First(&offering).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOfferingNotFound
			}
			return err
		}

		now := e.now()
		switch offering.WindowStatus(now) {
		case domain.OfferingClosed:
			return domain.ErrOfferingClosed
		case domain.OfferingDraft:
			return domain.ErrOfferingNotLive
		}

		tag, err = e.openTag(ctx, tx, &offering)
		if err != nil {
			return err
		}
		newFilled := tag.TokensFilled + req.Tokens
		if newFilled > tag.TokensPerShare {
			return domain.ErrOrderExceedsTagCapacity
		}

		order = &domain.Order{
			OrderNumber:     orderNumber,
			BuyerID:         req.BuyerID,
			OfferingID:      offering.OfferingID,
			TagNumber:       tag.TagNumber,
			Tokens:          req.Tokens,
			Shares:          offering.SharesForTokens(req.Tokens),
			Amount:          offering.AmountForTokens(req.Tokens),
			Currency:        offering.Currency,
			Status:          domain.OrderPending,
			PaymentIntentID: req.PaymentIntentID,
			ReservedUntil:   now.Add(e.ttl()),
			Related:         req.Related,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		complete := newFilled == tag.TokensPerShare
		updates := map[string]interface{}{
			"tokens_filled": newFilled,
			"is_complete":   complete,
			"updatedAt":     now,
		}
		if complete {
			updates["completed_at"] = now
		}
		res := tx.Model(&domain.ShareTag{}).
			Where("share_tag_id = ? AND tokens_filled = ?", tag.ShareTagID, tag.TokensFilled).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("share tag %d changed outside the offering lock", tag.TagNumber)
		}
		tag.TokensFilled = newFilled
		tag.IsComplete = complete

		if err := offerings.RefreshAvailable(tx, &offering, now); err != nil {
			return err
		}

		return e.Journal.RecordAttempt(ctx, tx, journal.Entry{
			Type:            domain.EventPlaced,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: order.PaymentIntentID,
			BuyerID:         order.BuyerID,
			OfferingID:      order.OfferingID,
			Data: map[string]interface{}{
				"tag_number":     order.TagNumber,
				"tokens":         order.Tokens,
				"shares":         order.Shares.String(),
				"amount":         order.Amount.String(),
				"reserved_until": order.ReservedUntil,
				"tag_complete":   complete,
			},
		})
	})

	if err != nil {
		if domain.IsRejection(err) {
			obs.OrdersPlaced.WithLabelValues(domain.Code(err)).Inc()
			e.record(ctx, nil, journal.Entry{
				Type:            domain.EventRejected,
				PaymentIntentID: req.PaymentIntentID,
				BuyerID:         req.BuyerID,
				OfferingID:      req.OfferingID,
				Data: map[string]interface{}{
					"code":   domain.Code(err),
					"error":  err.Error(),
					"tokens": req.Tokens,
				},
			})
			return nil, err
		}
		// A unique index violation means another node placed the same intent first.
		if prior, ferr := e.Journal.FindByPaymentIntent(ctx, nil, req.PaymentIntentID); ferr == nil {
			return e.replay(ctx, prior, req)
		}
		obs.OrdersPlaced.WithLabelValues("error").Inc()
		return nil, err
	}
	if duplicate != nil {
		return e.replay(ctx, duplicate, req)
	}

	obs.OrdersPlaced.WithLabelValues("placed").Inc()
	log.Debug().Str("order_number", order.OrderNumber).Str("offering_id", order.OfferingID.String()).
		Int64("tag_number", order.TagNumber).Int64("tokens", order.Tokens).Msg("allocation: order placed")

	e.publish(ctx, events.Event{
		Type:        events.TypeOrderPlaced,
		OrderNumber: order.OrderNumber,
		OfferingID:  order.OfferingID.String(),
		BuyerID:     order.BuyerID.String(),
		TagNumber:   order.TagNumber,
		Tokens:      order.Tokens,
		Amount:      order.Amount.String(),
		Currency:    order.Currency,
		At:          order.CreatedAt,
	})
	if tag.IsComplete {
		obs.TagsCompleted.Inc()
		e.publish(ctx, events.Event{
			Type:       events.TypeTagCompleted,
			OfferingID: order.OfferingID.String(),
			TagNumber:  tag.TagNumber,
			At:         order.CreatedAt,
		})
	}
	return &Placement{Order: order}, nil
}

// replay answers a repeated payment intent with the order it already produced.
func (e *Engine) replay(ctx context.Context, existing *domain.Order, req PlaceRequest) (*Placement, error) {
	if existing.BuyerID != req.BuyerID || existing.OfferingID != req.OfferingID {
		obs.PaymentMismatches.Inc()
		log.Warn().Str("payment_intent_id", req.PaymentIntentID).Str("order_number", existing.OrderNumber).
			Str("buyer_id", req.BuyerID.String()).Msg("security: payment intent reused for a different order")
		e.record(ctx, nil, journal.Entry{
			Type:            domain.EventPaymentMismatch,
			OrderNumber:     existing.OrderNumber,
			PaymentIntentID: req.PaymentIntentID,
			BuyerID:         req.BuyerID,
			OfferingID:      req.OfferingID,
			Data:            map[string]interface{}{"stage": "place"},
		})
		return nil, domain.ErrPaymentMismatch
	}
	obs.OrdersPlaced.WithLabelValues("duplicate").Inc()
	e.record(ctx, nil, journal.Entry{
		Type:            domain.EventDuplicate,
		OrderNumber:     existing.OrderNumber,
		PaymentIntentID: existing.PaymentIntentID,
		BuyerID:         existing.BuyerID,
		OfferingID:      existing.OfferingID,
		Data:            map[string]interface{}{"status": existing.Status},
	})
	return &Placement{Order: existing, Replayed: true}, nil
}

// openTag returns the lowest incomplete tag, opening the next one when every tag is full.
func (e *Engine) openTag(ctx context.Context, tx *gorm.DB, offering *domain.Offering) (*domain.ShareTag, error) {
	var tag domain.ShareTag
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("offering_id = ? AND is_complete = ?", offering.OfferingID, false).
		Order("tag_number ASC").
		First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return e.Tags.ReserveTag(ctx, tx, offering)
}

// ConfirmOrder marks a pending order paid and credits the buyer's holding. A paid order
// is returned as is. Orders already failed or refunded return ErrOrderNotPending along
// with the order so the caller can refund the late payment.
func (e *Engine) ConfirmOrder(ctx context.Context, orderNumber, paymentIntentID string) (*domain.Order, error) {
	if paymentIntentID == "" {
		return nil, domain.ErrPaymentIntentRequired
	}

	var (
		order    *domain.Order
		credited bool
	)
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := e.Journal.FindByOrderNumber(ctx, tx, orderNumber)
		if err != nil {
			return err
		}
		order = o
		if order.PaymentIntentID != paymentIntentID {
			return domain.ErrPaymentMismatch
		}
		switch order.Status {
		case domain.OrderPaid:
			return nil
		case domain.OrderFailed, domain.OrderRefunded:
			return domain.ErrOrderNotPending
		}

		now := e.now()
		res := tx.Model(&domain.Order{}).
			Where("order_id = ? AND status = ?", order.OrderID, domain.OrderPending).
			Updates(map[string]interface{}{
				"status":    domain.OrderPaid,
				"paid_at":   now,
				"updatedAt": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			// Another confirmation or a release committed after the read above.
			current, err := e.Journal.FindByOrderNumber(ctx, tx, orderNumber)
			if err != nil {
				return err
			}
			order = current
			if current.Status == domain.OrderPaid {
				return nil
			}
			return domain.ErrOrderNotPending
		}
		order.Status = domain.OrderPaid
		order.PaidAt = &now

		h, err := e.Holdings.ApplyPaidOrder(ctx, tx, order)
		if err != nil {
			return fmt.Errorf("apply holding: %w", err)
		}
		order.HoldingSeq = h.Version
		if err := tx.Model(&domain.Order{}).
			Where("order_id = ?", order.OrderID).
			Update("holding_seq", h.Version).Error; err != nil {
			return err
		}
		credited = true
		return e.Journal.RecordAttempt(ctx, tx, journal.Entry{
			Type:            domain.EventConfirmed,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: paymentIntentID,
			BuyerID:         order.BuyerID,
			OfferingID:      order.OfferingID,
			Data: map[string]interface{}{
				"holding_version":    h.Version,
				"holding_shares":     h.Shares.String(),
				"avg_cost_per_share": h.AvgCostPerShare.String(),
			},
		})
	})

	switch {
	case errors.Is(err, domain.ErrPaymentMismatch):
		obs.PaymentMismatches.Inc()
		log.Warn().Str("order_number", orderNumber).Str("payment_intent_id", paymentIntentID).
			Msg("security: confirmation payment intent does not match order")
		entry := journal.Entry{
			Type:            domain.EventPaymentMismatch,
			OrderNumber:     orderNumber,
			PaymentIntentID: paymentIntentID,
			Data:            map[string]interface{}{"stage": "confirm"},
		}
		if order != nil {
			entry.BuyerID = order.BuyerID
			entry.OfferingID = order.OfferingID
		}
		e.record(ctx, nil, entry)
		return nil, err
	case errors.Is(err, domain.ErrOrderNotPending):
		e.record(ctx, nil, journal.Entry{
			Type:            domain.EventLatePayment,
			OrderNumber:     orderNumber,
			PaymentIntentID: paymentIntentID,
			BuyerID:         order.BuyerID,
			OfferingID:      order.OfferingID,
			Data:            map[string]interface{}{"status": order.Status},
		})
		return order, err
	case err != nil:
		return nil, err
	}

	if credited {
		obs.OrderTransitions.WithLabelValues(string(domain.OrderPaid)).Inc()
		e.publish(ctx, events.Event{
			Type:        events.TypeOrderConfirmed,
			OrderNumber: order.OrderNumber,
			OfferingID:  order.OfferingID.String(),
			BuyerID:     order.BuyerID.String(),
			TagNumber:   order.TagNumber,
			Tokens:      order.Tokens,
			Amount:      order.Amount.String(),
			Currency:    order.Currency,
			At:          *order.PaidAt,
		})
	}
	return order, nil
}

// ConfirmByPaymentIntent confirms the order a payment intent was placed with.
func (e *Engine) ConfirmByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	order, err := e.Journal.FindByPaymentIntent(ctx, nil, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return e.ConfirmOrder(ctx, order.OrderNumber, paymentIntentID)
}

// ReleaseOrder fails a pending order and returns its tokens to the tag. Orders that are
// no longer pending are returned unchanged.
func (e *Engine) ReleaseOrder(ctx context.Context, orderNumber, reason string) (*domain.Order, error) {
	if !domain.IsValidReleaseReason(reason) {
		return nil, domain.ErrInvalidReleaseReason
	}
	order, err := e.Journal.FindByOrderNumber(ctx, nil, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderPending {
		return order, nil
	}
	if reason == domain.ReleaseExpired && order.ReservedUntil.After(e.now()) {
		return nil, domain.ErrReservationActive
	}

	unlock, err := e.Locker.Lock(ctx, lockKey(order.OfferingID))
	if err != nil {
		return nil, fmt.Errorf("lock offering: %w", err)
	}
	defer unlock()

	var released bool
	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offering domain.Offering
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("offering_id = ?", order.OfferingID).
			First(&offering).Error; err != nil {
			return err
		}

		now := e.now()
		res := tx.Model(&domain.Order{}).
			Where("order_id = ? AND status = ?", order.OrderID, domain.OrderPending).
			Updates(map[string]interface{}{
				"status":         domain.OrderFailed,
				"released_at":    now,
				"release_reason": reason,
				"updatedAt":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		var tag domain.ShareTag
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("offering_id = ? AND tag_number = ?", order.OfferingID, order.TagNumber).
			First(&tag).Error; err != nil {
			return fmt.Errorf("load tag %d: %w", order.TagNumber, err)
		}
		filled := tag.TokensFilled - order.Tokens
		if filled < 0 {
			filled = 0
		}
		if err := tx.Model(&domain.ShareTag{}).
			Where("share_tag_id = ?", tag.ShareTagID).
			Updates(map[string]interface{}{
				"tokens_filled": filled,
				"is_complete":   filled == tag.TokensPerShare,
				"completed_at":  nil,
				"updatedAt":     now,
			}).Error; err != nil {
			return err
		}
		if err := offerings.RefreshAvailable(tx, &offering, now); err != nil {
			return err
		}

		order.Status = domain.OrderFailed
		order.ReleasedAt = &now
		order.ReleaseReason = &reason
		released = true
		return e.Journal.RecordAttempt(ctx, tx, journal.Entry{
			Type:            domain.EventReleased,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: order.PaymentIntentID,
			BuyerID:         order.BuyerID,
			OfferingID:      order.OfferingID,
			Data: map[string]interface{}{
				"reason":        reason,
				"tag_number":    order.TagNumber,
				"tokens":        order.Tokens,
				"tokens_filled": filled,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if !released {
		return e.Journal.FindByOrderNumber(ctx, nil, orderNumber)
	}

	obs.OrderTransitions.WithLabelValues(string(domain.OrderFailed)).Inc()
	e.publish(ctx, events.Event{
		Type:        events.TypeOrderReleased,
		OrderNumber: order.OrderNumber,
		OfferingID:  order.OfferingID.String(),
		BuyerID:     order.BuyerID.String(),
		TagNumber:   order.TagNumber,
		Tokens:      order.Tokens,
		At:          *order.ReleasedAt,
	})
	return order, nil
}

// ReleaseByPaymentIntent releases the order a payment intent was placed with.
func (e *Engine) ReleaseByPaymentIntent(ctx context.Context, paymentIntentID, reason string) (*domain.Order, error) {
	order, err := e.Journal.FindByPaymentIntent(ctx, nil, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return e.ReleaseOrder(ctx, order.OrderNumber, reason)
}

// ReleaseExpired releases up to limit pending orders whose reservation has lapsed.
func (e *Engine) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	orders, err := e.Journal.ExpiredPending(ctx, e.now(), limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, o := range orders {
		if ctx.Err() != nil {
			return released, ctx.Err()
		}
		got, err := e.ReleaseOrder(ctx, o.OrderNumber, domain.ReleaseExpired)
		if err != nil {
			log.Error().Err(err).Str("order_number", o.OrderNumber).Msg("allocation: release expired order failed")
			continue
		}
		if got.Status == domain.OrderFailed && got.ReleaseReason != nil && *got.ReleaseReason == domain.ReleaseExpired {
			released++
		}
	}
	return released, nil
}

// RefundOrder marks a paid order refunded and rebuilds the buyer's holding from the
// remaining paid orders. Tag capacity stays allocated.
func (e *Engine) RefundOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	var (
		order    *domain.Order
		refunded bool
	)
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := e.Journal.FindByOrderNumber(ctx, tx, orderNumber)
		if err != nil {
			return err
		}
		order = o
		if order.Status == domain.OrderRefunded {
			return nil
		}
		if order.Status != domain.OrderPaid {
			return domain.ErrOrderNotPaid
		}

		now := e.now()
		res := tx.Model(&domain.Order{}).
			Where("order_id = ? AND status = ?", order.OrderID, domain.OrderPaid).
			Updates(map[string]interface{}{
				"status":      domain.OrderRefunded,
				"refunded_at": now,
				"updatedAt":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return domain.ErrOrderNotPaid
		}
		order.Status = domain.OrderRefunded
		order.RefundedAt = &now

		h, err := e.Holdings.Rebuild(ctx, tx, order.BuyerID, order.OfferingID)
		if err != nil {
			return fmt.Errorf("rebuild holding: %w", err)
		}
		refunded = true
		return e.Journal.RecordAttempt(ctx, tx, journal.Entry{
			Type:            domain.EventRefunded,
			OrderNumber:     order.OrderNumber,
			PaymentIntentID: order.PaymentIntentID,
			BuyerID:         order.BuyerID,
			OfferingID:      order.OfferingID,
			Data: map[string]interface{}{
				"tokens":             order.Tokens,
				"amount":             order.Amount.String(),
				"holding_version":    h.Version,
				"holding_shares":     h.Shares.String(),
				"avg_cost_per_share": h.AvgCostPerShare.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if refunded {
		obs.OrderTransitions.WithLabelValues(string(domain.OrderRefunded)).Inc()
		e.publish(ctx, events.Event{
			Type:        events.TypeOrderRefunded,
			OrderNumber: order.OrderNumber,
			OfferingID:  order.OfferingID.String(),
			BuyerID:     order.BuyerID.String(),
			TagNumber:   order.TagNumber,
			Tokens:      order.Tokens,
			Amount:      order.Amount.String(),
			Currency:    order.Currency,
			At:          *order.RefundedAt,
		})
	}
	return order, nil
}
