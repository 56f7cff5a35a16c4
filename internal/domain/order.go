package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderFailed   OrderStatus = "failed"
	OrderRefunded OrderStatus = "refunded"
)

const (
	ReleaseExpired         = "expired"
	ReleaseProviderFailure = "provider_failure"
)

// IsValidReleaseReason returns true for the reasons a pending order may be released with.
func IsValidReleaseReason(reason string) bool {
	return reason == ReleaseExpired || reason == ReleaseProviderFailure
}

// Order is one purchase attempt against exactly one share tag.
type Order struct {
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;primaryKey" json:"order_id"`
	OrderNumber     string          `gorm:"column:order_number;not null;uniqueIndex" json:"order_number"`
	BuyerID         uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;index:idx_orders_buyer_offering" json:"buyer_id"`
	OfferingID      uuid.UUID       `gorm:"column:offering_id;type:uuid;not null;index:idx_orders_buyer_offering" json:"offering_id"`
	TagNumber       int64           `gorm:"column:tag_number;not null" json:"tag_number"`
	Tokens          int64           `gorm:"column:tokens;not null" json:"tokens"`
	Shares          decimal.Decimal `gorm:"column:shares;type:numeric(20,8);not null" json:"shares"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null" json:"amount"`
	Currency        string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status          OrderStatus     `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentIntentID string          `gorm:"column:payment_intent_id;not null;uniqueIndex" json:"payment_intent_id"`
	ReservedUntil   time.Time       `gorm:"column:reserved_until;not null" json:"reserved_until"`
	PaidAt          *time.Time      `gorm:"column:paid_at" json:"paid_at"`
	HoldingSeq      int64           `gorm:"column:holding_seq;not null;default:0" json:"holding_seq"`
	ReleasedAt      *time.Time      `gorm:"column:released_at" json:"released_at"`
	ReleaseReason   *string         `gorm:"column:release_reason" json:"release_reason"`
	RefundedAt      *time.Time      `gorm:"column:refunded_at" json:"refunded_at"`
	Related         RelatedRef      `gorm:"embedded;embeddedPrefix:related_" json:"related"`
	CreatedAt       time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Order) TableName() string {
	return "Orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	return nil
}
