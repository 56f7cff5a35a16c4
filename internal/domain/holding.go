package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Holding is a buyer's aggregated position in one offering. Version guards concurrent updates.
type Holding struct {
	HoldingID       uuid.UUID       `gorm:"column:holding_id;type:uuid;primaryKey" json:"holding_id"`
	BuyerID         uuid.UUID       `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_holdings_buyer_offering" json:"buyer_id"`
	OfferingID      uuid.UUID       `gorm:"column:offering_id;type:uuid;not null;uniqueIndex:idx_holdings_buyer_offering" json:"offering_id"`
	Tokens          int64           `gorm:"column:tokens;not null;default:0" json:"tokens"`
	Shares          decimal.Decimal `gorm:"column:shares;type:numeric(20,8);not null" json:"shares"`
	AvgCostPerShare decimal.Decimal `gorm:"column:avg_cost_per_share;type:numeric(20,8);not null" json:"avg_cost_per_share"`
	Version         int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt       time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Holding) TableName() string {
	return "Holdings"
}

// BeforeCreate: never insert zero UUID for primary key; generate random when not set.
func (h *Holding) BeforeCreate(tx *gorm.DB) error {
	if h.HoldingID == uuid.Nil {
		h.HoldingID = uuid.New()
	}
	return nil
}
