package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderEventType string

const (
	EventPlaced          OrderEventType = "placed"
	EventDuplicate       OrderEventType = "duplicate"
	EventRejected        OrderEventType = "rejected"
	EventConfirmed       OrderEventType = "confirmed"
	EventReleased        OrderEventType = "released"
	EventRefunded        OrderEventType = "refunded"
	EventPaymentMismatch OrderEventType = "payment_mismatch"
	EventLatePayment     OrderEventType = "late_payment"
)

// OrderEvent is one append-only journal row. Rejected attempts have no order number.
type OrderEvent struct {
	EventID         uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	Seq             int64          `gorm:"column:seq;not null;index" json:"seq"`
	OrderNumber     *string        `gorm:"column:order_number;index" json:"order_number"`
	PaymentIntentID string         `gorm:"column:payment_intent_id;index" json:"payment_intent_id"`
	BuyerID         *uuid.UUID     `gorm:"column:buyer_id;type:uuid" json:"buyer_id"`
	OfferingID      *uuid.UUID     `gorm:"column:offering_id;type:uuid" json:"offering_id"`
	EventType       OrderEventType `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	EventData       datatypes.JSON `gorm:"column:event_data;type:json" json:"event_data"`
	CreatedAt       time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (OrderEvent) TableName() string {
	return "OrderEvents"
}

func (e *OrderEvent) BeforeCreate(tx *gorm.DB) error {
	if e.EventID == uuid.Nil {
		e.EventID = uuid.New()
	}
	return nil
}
