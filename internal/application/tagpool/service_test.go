package tagpool

import (
	"context"
	"testing"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSeed_AppendsAfterCurrentMax(t *testing.T) {
	s := &Service{DB: testutil.NewDB(t)}
	first, err := s.Seed(context.Background(), "ug", 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "UG-000001", first[0].Label)

	second, err := s.Seed(context.Background(), "UG", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), second[0].TagNumber)
	assert.Equal(t, "UG-000005", second[1].Label)

	_, err = s.Seed(context.Background(), "UG", 0)
	assert.ErrorIs(t, err, ErrInvalidSeedCount)
	_, err = s.Seed(context.Background(), "Uganda", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidCountryCode)
}

func TestReserveTag_NumbersSequentiallyAndClaimsLowestPoolTag(t *testing.T) {
	db := testutil.NewDB(t)
	s := &Service{DB: db}
	_, err := s.Seed(context.Background(), "KE", 2)
	require.NoError(t, err)

	offering := &domain.Offering{
		AssetID: domainAssetID(t, db), TotalShares: 2, PricePerShare: decimal.NewFromInt(10),
		TokenPrice: decimal.NewFromInt(1), TokensPerShare: 10, Currency: "usd", CountryCode: "KE",
		Status: domain.OfferingLive, AvailableShares: decimal.NewFromInt(2),
	}
	require.NoError(t, db.Create(offering).Error)

	var tags []*domain.ShareTag
	for i := 0; i < 2; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			tag, err := s.ReserveTag(context.Background(), tx, offering)
			tags = append(tags, tag)
			return err
		}))
	}
	assert.Equal(t, int64(1), tags[0].TagNumber)
	assert.Equal(t, int64(2), tags[1].TagNumber)
	assert.Equal(t, "KE-000001", tags[0].PoolTagLabel)
	assert.Equal(t, "KE-000002", tags[1].PoolTagLabel)
	assert.Equal(t, int64(10), tags[0].TokensPerShare)

	var pool domain.PreGeneratedTag
	require.NoError(t, db.Where("tag_number = ?", 1).First(&pool).Error)
	assert.Equal(t, domain.PoolTagAssigned, pool.Status)
	require.NotNil(t, pool.ShareTagID)
	assert.Equal(t, tags[0].ShareTagID, *pool.ShareTagID)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := s.ReserveTag(context.Background(), tx, offering)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrCapacityExhausted)
}

func TestReserveTag_EmptyPool(t *testing.T) {
	db := testutil.NewDB(t)
	s := &Service{DB: db}
	offering := &domain.Offering{
		AssetID: domainAssetID(t, db), TotalShares: 5, PricePerShare: decimal.NewFromInt(10),
		TokenPrice: decimal.NewFromInt(1), TokensPerShare: 10, Currency: "usd", CountryCode: "TZ",
		AvailableShares: decimal.NewFromInt(5),
	}
	require.NoError(t, db.Create(offering).Error)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := s.ReserveTag(context.Background(), tx, offering)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrTagPoolEmpty)

	stats, err := s.Stats(context.Background(), "tz")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Available+stats.Assigned)
}

func domainAssetID(t *testing.T, db *gorm.DB) uuid.UUID {
	a := domain.Asset{Type: domain.AssetTypeLivestock, Name: "Zebu bull"}
	require.NoError(t, db.Create(&a).Error)
	return a.AssetID
}
