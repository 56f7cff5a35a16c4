package offerings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	DB    *gorm.DB
	Clock clock.Clock
}

type OpenParams struct {
	AssetID       uuid.UUID
	TotalShares   int64
	PricePerShare decimal.Decimal
	TokenPrice    decimal.Decimal
	GoLiveAt      time.Time
	CloseAt       *time.Time
	CountryCode   string
	Currency      string
	Meta          domain.OfferingMeta
}

func (s *Service) now() time.Time {
	return clock.OrReal(s.Clock).Now()
}

// Open validates capacity parameters and persists a new offering. tokens_per_share is
// derived here once and never recomputed.
func (s *Service) Open(ctx context.Context, p OpenParams) (*domain.Offering, error) {
	if p.TotalShares <= 0 || p.TotalShares > domain.MaxTotalShares || !p.PricePerShare.IsPositive() || !p.TokenPrice.IsPositive() {
		return nil, domain.ErrInvalidCapacity
	}
	tps := domain.TokensPerShare(p.PricePerShare, p.TokenPrice)
	if tps < 1 || tps > domain.MaxTokensPerShare {
		return nil, domain.ErrInvalidCapacity
	}
	// Token capacity is total_shares x tokens_per_share and must fit in int64.
	if p.TotalShares > math.MaxInt64/tps {
		return nil, domain.ErrInvalidCapacity
	}
	if p.GoLiveAt.IsZero() {
		return nil, domain.ErrInvalidCapacity
	}
	if p.CloseAt != nil && !p.CloseAt.After(p.GoLiveAt) {
		return nil, domain.ErrInvalidCapacity
	}
	country := ""
	if p.CountryCode != "" {
		country = validation.NormalizeCountryCode(p.CountryCode)
		if !validation.IsValidCountryCode(country) {
			return nil, domain.ErrInvalidCountryCode
		}
	}
	currency := validation.NormalizeCurrency(p.Currency)
	if !validation.IsValidCurrency(currency) {
		return nil, domain.ErrInvalidCurrency
	}
	// Order amounts are tokens x token_price and must be chargeable without rounding.
	if !p.TokenPrice.Equal(p.TokenPrice.Truncate(validation.CurrencyExponent(currency))) {
		return nil, domain.ErrInvalidCapacity
	}

	var closeAt *time.Time
	if p.CloseAt != nil {
		c := p.CloseAt.UTC()
		closeAt = &c
	}

	now := s.now()
	status := domain.OfferingDraft
	if !now.Before(p.GoLiveAt) {
		status = domain.OfferingLive
	}

	var offering domain.Offering
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var asset domain.Asset
		if err := tx.Where("asset_id = ?", p.AssetID).First(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAssetNotFound
			}
			return err
		}
		offering = domain.Offering{
			AssetID:         asset.AssetID,
			TotalShares:     p.TotalShares,
			AvailableShares: decimal.NewFromInt(p.TotalShares),
			PricePerShare:   p.PricePerShare,
			TokenPrice:      p.TokenPrice,
			TokensPerShare:  tps,
			Currency:        currency,
			CountryCode:     country,
			Status:          status,
			GoLiveAt:        p.GoLiveAt.UTC(),
			CloseAt:         closeAt,
			Meta:            datatypes.NewJSONType(p.Meta),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.Create(&offering).Error
	})
	if err != nil {
		return nil, err
	}
	return &offering, nil
}

// Close marks the offering closed. Closing a closed offering returns it unchanged.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	var offering domain.Offering
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("offering_id = ?", id).First(&offering).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrOfferingNotFound
			}
			return err
		}
		if offering.Status == domain.OfferingClosed {
			return nil
		}
		now := s.now()
		offering.Status = domain.OfferingClosed
		offering.ClosedAt = &now
		return tx.Model(&domain.Offering{}).
			Where("offering_id = ?", id).
			Updates(map[string]interface{}{
				"status":    domain.OfferingClosed,
				"closed_at": now,
				"updatedAt": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &offering, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Offering, error) {
	var offering domain.Offering
	if err := s.DB.WithContext(ctx).Where("offering_id = ?", id).First(&offering).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOfferingNotFound
		}
		return nil, err
	}
	return &offering, nil
}

// List returns offerings ordered by go-live time. An empty status lists all of them.
func (s *Service) List(ctx context.Context, status domain.OfferingStatus) ([]domain.Offering, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Offering{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Offering
	err := q.Order("go_live_at ASC").Find(&out).Error
	return out, err
}

// FilledTokens sums tokens_filled over the offering's tags, pending reservations included.
func FilledTokens(tx *gorm.DB, offeringID uuid.UUID) (int64, error) {
	var filled int64
	err := tx.Model(&domain.ShareTag{}).
		Where("offering_id = ?", offeringID).
		Select("CAST(COALESCE(SUM(tokens_filled), 0) AS BIGINT)").
		Scan(&filled).Error
	return filled, err
}

// AvailableShares converts unfilled token capacity back into shares.
func AvailableShares(o *domain.Offering, filled int64) decimal.Decimal {
	remaining := o.TokenCapacity() - filled
	if remaining <= 0 {
		return decimal.Zero
	}
	return o.SharesForTokens(remaining)
}

// RefreshAvailable rewrites the cached available_shares column. It must run in the
// same transaction that changed tokens_filled.
func RefreshAvailable(tx *gorm.DB, o *domain.Offering, now time.Time) error {
	filled, err := FilledTokens(tx, o.OfferingID)
	if err != nil {
		return fmt.Errorf("sum tokens filled: %w", err)
	}
	o.AvailableShares = AvailableShares(o, filled)
	return tx.Model(&domain.Offering{}).
		Where("offering_id = ?", o.OfferingID).
		Updates(map[string]interface{}{
			"available_shares": o.AvailableShares,
			"updatedAt":        now,
		}).Error
}

// RemainingCapacity is informational only; allocation decides against the locked tag row.
func (s *Service) RemainingCapacity(ctx context.Context, id uuid.UUID) (int64, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	filled, err := FilledTokens(s.DB.WithContext(ctx), id)
	if err != nil {
		return 0, err
	}
	return o.TokenCapacity() - filled, nil
}

type OpenTag struct {
	TagNumber    int64  `json:"tag_number"`
	TokensFilled int64  `json:"tokens_filled"`
	Room         int64  `json:"room"`
	PoolTagLabel string `json:"pool_tag_label,omitempty"`
}

type Availability struct {
	OfferingID      uuid.UUID             `json:"offering_id"`
	Status          domain.OfferingStatus `json:"status"`
	TotalShares     int64                 `json:"total_shares"`
	TokensPerShare  int64                 `json:"tokens_per_share"`
	TokenPrice      decimal.Decimal       `json:"token_price"`
	Currency        string                `json:"currency"`
	TokenCapacity   int64                 `json:"token_capacity"`
	TokensFilled    int64                 `json:"tokens_filled"`
	TokensRemaining int64                 `json:"tokens_remaining"`
	AvailableShares decimal.Decimal       `json:"available_shares"`
	TagCount        int64                 `json:"tag_count"`
	CompleteTags    int64                 `json:"complete_tags"`
	OpenTag         *OpenTag              `json:"open_tag"`
	GoLiveAt        time.Time             `json:"go_live_at"`
	CloseAt         *time.Time            `json:"close_at"`
}

// Availability reports capacity and the tag currently taking orders. Status is evaluated
// against the clock, so it can run ahead of the persisted column between sweeps.
func (s *Service) Availability(ctx context.Context, id uuid.UUID) (*Availability, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	db := s.DB.WithContext(ctx)
	filled, err := FilledTokens(db, id)
	if err != nil {
		return nil, err
	}
	var tagCount, complete int64
	if err := db.Model(&domain.ShareTag{}).Where("offering_id = ?", id).Count(&tagCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.ShareTag{}).Where("offering_id = ? AND is_complete = ?", id, true).Count(&complete).Error; err != nil {
		return nil, err
	}

	a := &Availability{
		OfferingID:      o.OfferingID,
		Status:          o.WindowStatus(s.now()),
		TotalShares:     o.TotalShares,
		TokensPerShare:  o.TokensPerShare,
		TokenPrice:      o.TokenPrice,
		Currency:        o.Currency,
		TokenCapacity:   o.TokenCapacity(),
		TokensFilled:    filled,
		TokensRemaining: o.TokenCapacity() - filled,
		AvailableShares: AvailableShares(o, filled),
		TagCount:        tagCount,
		CompleteTags:    complete,
		GoLiveAt:        o.GoLiveAt,
		CloseAt:         o.CloseAt,
	}

	var tag domain.ShareTag
	err = db.Where("offering_id = ? AND is_complete = ?", id, false).Order("tag_number ASC").First(&tag).Error
	switch {
	case err == nil:
		a.OpenTag = &OpenTag{
			TagNumber:    tag.TagNumber,
			TokensFilled: tag.TokensFilled,
			Room:         tag.Room(),
			PoolTagLabel: tag.PoolTagLabel,
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return a, nil
}

// ActivateDue moves draft offerings whose window has opened to live.
func (s *Service) ActivateDue(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Offering{}).
		Where("status = ? AND go_live_at <= ?", domain.OfferingDraft, now).
		Where("close_at IS NULL OR close_at > ?", now).
		Updates(map[string]interface{}{
			"status":    domain.OfferingLive,
			"updatedAt": now,
		})
	return res.RowsAffected, res.Error
}

// CloseDue closes offerings whose close_at has passed.
func (s *Service) CloseDue(ctx context.Context) (int64, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&domain.Offering{}).
		Where("status IN ? AND close_at IS NOT NULL AND close_at <= ?",
			[]domain.OfferingStatus{domain.OfferingDraft, domain.OfferingLive}, now).
		Updates(map[string]interface{}{
			"status":    domain.OfferingClosed,
			"closed_at": now,
			"updatedAt": now,
		})
	return res.RowsAffected, res.Error
}
