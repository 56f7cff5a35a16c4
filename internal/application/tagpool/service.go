package tagpool

import (
	"context"
	"errors"
	"fmt"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxSeedBatch caps a single seed request.
const MaxSeedBatch = 10_000

var ErrInvalidSeedCount = errors.New("Seed count must be between 1 and 10000")

// Service owns the pre-generated tag pool and the per-offering share tag sequence.
type Service struct {
	DB    *gorm.DB
	Clock clock.Clock
}

// Label formats the physical tag identifier for a country and pool number.
func Label(countryCode string, number int64) string {
	return fmt.Sprintf("%s-%06d", countryCode, number)
}

// Seed appends count available tags for a country, numbered after its current maximum.
func (s *Service) Seed(ctx context.Context, countryCode string, count int) ([]domain.PreGeneratedTag, error) {
	country := validation.NormalizeCountryCode(countryCode)
	if !validation.IsValidCountryCode(country) {
		return nil, domain.ErrInvalidCountryCode
	}
	if count < 1 || count > MaxSeedBatch {
		return nil, ErrInvalidSeedCount
	}

	var tags []domain.PreGeneratedTag
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var max int64
		if err := tx.Model(&domain.PreGeneratedTag{}).
			Where("country_code = ?", country).
			Select("CAST(COALESCE(MAX(tag_number), 0) AS BIGINT)").
			Scan(&max).Error; err != nil {
			return err
		}
		now := clock.OrReal(s.Clock).Now()
		tags = make([]domain.PreGeneratedTag, 0, count)
		for i := 1; i <= count; i++ {
			n := max + int64(i)
			tags = append(tags, domain.PreGeneratedTag{
				CountryCode: country,
				TagNumber:   n,
				Label:       Label(country, n),
				Status:      domain.PoolTagAvailable,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		return tx.CreateInBatches(&tags, 500).Error
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ReserveTag opens the next share tag for an offering. It must run inside the caller's
// transaction while the offering row is locked; the tag_number unique index backs that up.
func (s *Service) ReserveTag(ctx context.Context, tx *gorm.DB, offering *domain.Offering) (*domain.ShareTag, error) {
	var max int64
	if err := tx.Model(&domain.ShareTag{}).
		Where("offering_id = ?", offering.OfferingID).
		Select("CAST(COALESCE(MAX(tag_number), 0) AS BIGINT)").
		Scan(&max).Error; err != nil {
		return nil, err
	}
	if max >= offering.TotalShares {
		return nil, domain.ErrCapacityExhausted
	}

	now := clock.OrReal(s.Clock).Now()
	tag := domain.ShareTag{
		ShareTagID:     uuid.New(),
		OfferingID:     offering.OfferingID,
		TagNumber:      max + 1,
		TokensPerShare: offering.TokensPerShare,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if offering.CountryCode != "" {
		pool, err := s.claim(tx, offering, tag.ShareTagID)
		if err != nil {
			return nil, err
		}
		tag.PoolTagID = &pool.PoolTagID
		tag.PoolTagLabel = pool.Label
	}

	if err := tx.Create(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// claim assigns the lowest available pool tag of the offering's country.
func (s *Service) claim(tx *gorm.DB, offering *domain.Offering, shareTagID uuid.UUID) (*domain.PreGeneratedTag, error) {
	now := clock.OrReal(s.Clock).Now()
	for attempt := 0; attempt < 3; attempt++ {
		var pool domain.PreGeneratedTag
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("country_code = ? AND status = ?", offering.CountryCode, domain.PoolTagAvailable).
			Order("tag_number ASC").
			First(&pool).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTagPoolEmpty
		}
		if err != nil {
			return nil, err
		}
		offeringID := offering.OfferingID
		res := tx.Model(&domain.PreGeneratedTag{}).
			Where("pool_tag_id = ? AND status = ?", pool.PoolTagID, domain.PoolTagAvailable).
			Updates(map[string]interface{}{
				"status":       domain.PoolTagAssigned,
				"offering_id":  offeringID,
				"share_tag_id": shareTagID,
				"assigned_at":  now,
				"updatedAt":    now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			pool.Status = domain.PoolTagAssigned
			pool.OfferingID = &offeringID
			pool.ShareTagID = &shareTagID
			pool.AssignedAt = &now
			return &pool, nil
		}
	}
	return nil, domain.ErrTagPoolEmpty
}

type Stats struct {
	CountryCode string `json:"country_code"`
	Available   int64  `json:"available"`
	Assigned    int64  `json:"assigned"`
}

func (s *Service) Stats(ctx context.Context, countryCode string) (*Stats, error) {
	country := validation.NormalizeCountryCode(countryCode)
	if !validation.IsValidCountryCode(country) {
		return nil, domain.ErrInvalidCountryCode
	}
	st := &Stats{CountryCode: country}
	db := s.DB.WithContext(ctx).Model(&domain.PreGeneratedTag{})
	if err := db.Where("country_code = ? AND status = ?", country, domain.PoolTagAvailable).Count(&st.Available).Error; err != nil {
		return nil, err
	}
	db = s.DB.WithContext(ctx).Model(&domain.PreGeneratedTag{})
	if err := db.Where("country_code = ? AND status = ?", country, domain.PoolTagAssigned).Count(&st.Assigned).Error; err != nil {
		return nil, err
	}
	return st, nil
}
