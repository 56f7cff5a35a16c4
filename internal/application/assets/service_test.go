package assets

import (
	"context"
	"testing"
	"time"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_ValidatesTypeAndName(t *testing.T) {
	s := &Service{DB: testutil.NewDB(t)}
	_, err := s.Create(context.Background(), "spaceship", "X", domain.AssetMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidAssetType)
	_, err = s.Create(context.Background(), domain.AssetTypeLivestock, "  ", domain.AssetMeta{})
	assert.ErrorIs(t, err, ErrNameRequired)

	a, err := s.Create(context.Background(), " Livestock ", "Friesian cow", domain.AssetMeta{Breed: "Friesian", BirthYear: 2023})
	require.NoError(t, err)
	assert.Equal(t, domain.AssetTypeLivestock, a.Type)
	assert.NotEqual(t, uuid.Nil, a.AssetID)
}

func TestUpdateDetails_KeepsIdentityAndType(t *testing.T) {
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := &Service{DB: testutil.NewDB(t), Clock: c}
	a, err := s.Create(context.Background(), domain.AssetTypePoultry, "Kienyeji flock", domain.AssetMeta{})
	require.NoError(t, err)

	name := "Kienyeji flock B"
	c.Advance(time.Hour)
	updated, err := s.UpdateDetails(context.Background(), a.AssetID, &name, &domain.AssetMeta{WeightKg: 2.5})
	require.NoError(t, err)
	assert.Equal(t, a.AssetID, updated.AssetID)

	got, err := s.Get(context.Background(), a.AssetID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, domain.AssetTypePoultry, got.Type)
	assert.Equal(t, 2.5, got.Meta.Data().WeightKg)

	_, err = s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	list, err := s.List(context.Background(), domain.AssetTypePoultry)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
