package journal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Journal is the append-only order journal. Orders rows carry the current state;
// OrderEvents rows record every attempt and transition.
type Journal struct {
	DB    *gorm.DB
	Clock clock.Clock

	mu      sync.Mutex
	lastSeq int64
}

// Entry is one attempt or transition to record.
type Entry struct {
	Type            domain.OrderEventType
	OrderNumber     string
	PaymentIntentID string
	BuyerID         uuid.UUID
	OfferingID      uuid.UUID
	Data            map[string]interface{}
}

func (j *Journal) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return j.DB.WithContext(ctx)
}

func (j *Journal) nextSeq(now time.Time) int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	seq := now.UnixNano()
	if seq <= j.lastSeq {
		seq = j.lastSeq + 1
	}
	j.lastSeq = seq
	return seq
}

// RecordAttempt appends an event. Pass the caller's transaction so the event commits or
// rolls back with the state change it describes; nil writes directly.
func (j *Journal) RecordAttempt(ctx context.Context, tx *gorm.DB, e Entry) error {
	now := clock.OrReal(j.Clock).Now()
	ev := domain.OrderEvent{
		Seq:             j.nextSeq(now),
		PaymentIntentID: e.PaymentIntentID,
		EventType:       e.Type,
		CreatedAt:       now,
	}
	if e.OrderNumber != "" {
		n := e.OrderNumber
		ev.OrderNumber = &n
	}
	if e.BuyerID != uuid.Nil {
		id := e.BuyerID
		ev.BuyerID = &id
	}
	if e.OfferingID != uuid.Nil {
		id := e.OfferingID
		ev.OfferingID = &id
	}
	data := e.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	ev.EventData = datatypes.JSON(b)
	return j.conn(ctx, tx).Create(&ev).Error
}

// FindByPaymentIntent returns the order created for a payment intent.
func (j *Journal) FindByPaymentIntent(ctx context.Context, tx *gorm.DB, intentID string) (*domain.Order, error) {
	var order domain.Order
	if err := j.conn(ctx, tx).Where("payment_intent_id = ?", intentID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (j *Journal) FindByOrderNumber(ctx context.Context, tx *gorm.DB, orderNumber string) (*domain.Order, error) {
	var order domain.Order
	if err := j.conn(ctx, tx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// PaidOrders returns the paid orders of a buyer in an offering in the order they were
// applied to the holding.
func (j *Journal) PaidOrders(ctx context.Context, tx *gorm.DB, buyerID, offeringID uuid.UUID) ([]domain.Order, error) {
	var orders []domain.Order
	err := j.conn(ctx, tx).
		Where("buyer_id = ? AND offering_id = ? AND status = ?", buyerID, offeringID, domain.OrderPaid).
		Order("holding_seq ASC").
		Order("order_number ASC").
		Find(&orders).Error
	return orders, err
}

// ExpiredPending returns pending orders whose reservation ended at or before now.
func (j *Journal) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []domain.Order
	err := j.DB.WithContext(ctx).
		Where("status = ? AND reserved_until <= ?", domain.OrderPending, now).
		Order("reserved_until ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// Events returns the journal rows for an order, oldest first.
func (j *Journal) Events(ctx context.Context, orderNumber string) ([]domain.OrderEvent, error) {
	var evs []domain.OrderEvent
	err := j.DB.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("seq ASC").
		Find(&evs).Error
	return evs, err
}

// EventsByPaymentIntent includes rejected attempts, which never got an order number.
func (j *Journal) EventsByPaymentIntent(ctx context.Context, intentID string) ([]domain.OrderEvent, error) {
	var evs []domain.OrderEvent
	err := j.DB.WithContext(ctx).
		Where("payment_intent_id = ?", intentID).
		Order("seq ASC").
		Find(&evs).Error
	return evs, err
}

// OrdersByBuyer lists a buyer's orders, newest first.
func (j *Journal) OrdersByBuyer(ctx context.Context, buyerID uuid.UUID, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []domain.Order
	err := j.DB.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("order_number DESC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
