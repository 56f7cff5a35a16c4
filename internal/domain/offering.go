package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OfferingStatus string

const (
	OfferingDraft  OfferingStatus = "draft"
	OfferingLive   OfferingStatus = "live"
	OfferingClosed OfferingStatus = "closed"
)

// MaxTokensPerShare keeps a single token worth at least 1e-8 of a share.
const MaxTokensPerShare = 100_000_000

// MaxTotalShares keeps available_shares inside its numeric(20,8) column.
const MaxTotalShares = 999_999_999_999

// ShareScale is the number of decimal places kept for shares and per-share costs.
const ShareScale = 8

// Offering is a time-boxed sale of fractional ownership in one asset.
type Offering struct {
	OfferingID      uuid.UUID                        `gorm:"column:offering_id;type:uuid;primaryKey" json:"offering_id"`
	AssetID         uuid.UUID                        `gorm:"column:asset_id;type:uuid;not null;index" json:"asset_id"`
	TotalShares     int64                            `gorm:"column:total_shares;not null" json:"total_shares"`
	AvailableShares decimal.Decimal                  `gorm:"column:available_shares;type:numeric(20,8);not null" json:"available_shares"`
	PricePerShare   decimal.Decimal                  `gorm:"column:price_per_share;type:numeric(20,8);not null" json:"price_per_share"`
	TokenPrice      decimal.Decimal                  `gorm:"column:token_price;type:numeric(20,8);not null" json:"token_price"`
	TokensPerShare  int64                            `gorm:"column:tokens_per_share;not null" json:"tokens_per_share"`
	Currency        string                           `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	CountryCode     string                           `gorm:"column:country_code;type:varchar(2)" json:"country_code"`
	Status          OfferingStatus                   `gorm:"column:status;type:varchar(20);not null;default:'draft'" json:"status"`
	GoLiveAt        time.Time                        `gorm:"column:go_live_at;not null" json:"go_live_at"`
	CloseAt         *time.Time                       `gorm:"column:close_at" json:"close_at"`
	ClosedAt        *time.Time                       `gorm:"column:closed_at" json:"closed_at"`
	Meta            datatypes.JSONType[OfferingMeta] `gorm:"column:meta" json:"meta"`
	CreatedAt       time.Time                        `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time                        `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Offering) TableName() string {
	return "Offerings"
}

func (o *Offering) BeforeCreate(tx *gorm.DB) error {
	if o.OfferingID == uuid.Nil {
		o.OfferingID = uuid.New()
	}
	return nil
}

// TokensPerShare is floor(pricePerShare / tokenPrice); 0 when tokenPrice is not positive.
func TokensPerShare(pricePerShare, tokenPrice decimal.Decimal) int64 {
	if !tokenPrice.IsPositive() || !pricePerShare.IsPositive() {
		return 0
	}
	q, _ := pricePerShare.QuoRem(tokenPrice, 0)
	return q.IntPart()
}

// TokenCapacity is the total number of tokens the offering can ever allocate.
func (o *Offering) TokenCapacity() int64 {
	return o.TotalShares * o.TokensPerShare
}

// SharesForTokens converts a token count to shares at ShareScale.
func (o *Offering) SharesForTokens(tokens int64) decimal.Decimal {
	return decimal.NewFromInt(tokens).DivRound(decimal.NewFromInt(o.TokensPerShare), ShareScale)
}

// AmountForTokens is the price of tokens at the offering's token price.
func (o *Offering) AmountForTokens(tokens int64) decimal.Decimal {
	return o.TokenPrice.Mul(decimal.NewFromInt(tokens))
}

// WindowStatus evaluates the lifecycle window at now. A persisted closed status always wins.
func (o *Offering) WindowStatus(now time.Time) OfferingStatus {
	if o.Status == OfferingClosed {
		return OfferingClosed
	}
	if o.CloseAt != nil && !now.Before(*o.CloseAt) {
		return OfferingClosed
	}
	if now.Before(o.GoLiveAt) {
		return OfferingDraft
	}
	return OfferingLive
}
