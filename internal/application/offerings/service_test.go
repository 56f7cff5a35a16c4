package offerings

import (
	"context"
	"math"
	"testing"
	"time"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *gorm.DB, *clock.Fake, uuid.UUID) {
	db := testutil.NewDB(t)
	c := clock.NewFake(t0)
	asset := domain.Asset{Type: domain.AssetTypeLivestock, Name: "Ankole cow", CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, db.Create(&asset).Error)
	return &Service{DB: db, Clock: c}, db, c, asset.AssetID
}

func params(assetID uuid.UUID) OpenParams {
	return OpenParams{
		AssetID:       assetID,
		TotalShares:   10,
		PricePerShare: decimal.NewFromInt(100),
		TokenPrice:    decimal.NewFromInt(10),
		GoLiveAt:      t0,
		Currency:      "usd",
		Meta:          domain.OfferingMeta{SettlementReference: "SR-1", AnimalCount: 1},
	}
}

func TestOpen_DerivesTokensPerShare(t *testing.T) {
	s, _, _, assetID := setup(t)
	o, err := s.Open(context.Background(), params(assetID))
	require.NoError(t, err)
	assert.Equal(t, int64(10), o.TokensPerShare)
	assert.Equal(t, domain.OfferingLive, o.Status)
	assert.True(t, o.AvailableShares.Equal(decimal.NewFromInt(10)))

	got, err := s.Get(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, "SR-1", got.Meta.Data().SettlementReference)
}

func TestOpen_InvalidCapacity(t *testing.T) {
	s, _, _, assetID := setup(t)
	before := t0.Add(-time.Minute)
	cases := map[string]func(p *OpenParams){
		"zero token price":     func(p *OpenParams) { p.TokenPrice = decimal.Zero },
		"negative share price": func(p *OpenParams) { p.PricePerShare = decimal.NewFromInt(-1) },
		"no shares":            func(p *OpenParams) { p.TotalShares = 0 },
		"token above share":    func(p *OpenParams) { p.TokenPrice = decimal.NewFromInt(101) },
		"close before go live": func(p *OpenParams) { p.CloseAt = &before },
		"close equals go live": func(p *OpenParams) { c := t0; p.CloseAt = &c },
		"sub-cent token price": func(p *OpenParams) { p.TokenPrice = decimal.RequireFromString("0.333") },
		"fractional yen price": func(p *OpenParams) {
			p.Currency = "jpy"
			p.PricePerShare = decimal.NewFromInt(1000)
			p.TokenPrice = decimal.RequireFromString("10.5")
		},
		"too many shares": func(p *OpenParams) { p.TotalShares = domain.MaxTotalShares + 1 },
		"token capacity overflows int64": func(p *OpenParams) {
			p.TotalShares = 100_000_000_000
			p.PricePerShare = decimal.NewFromInt(domain.MaxTokensPerShare)
			p.TokenPrice = decimal.NewFromInt(1)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := params(assetID)
			mutate(&p)
			_, err := s.Open(context.Background(), p)
			assert.ErrorIs(t, err, domain.ErrInvalidCapacity)
		})
	}
}

func TestOpen_TokenPriceInWholeMinorUnits(t *testing.T) {
	s, _, _, assetID := setup(t)

	p := params(assetID)
	p.TokenPrice = decimal.RequireFromString("2.50")
	o, err := s.Open(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(40), o.TokensPerShare)

	p = params(assetID)
	p.Currency = "JPY"
	p.PricePerShare = decimal.NewFromInt(5000)
	p.TokenPrice = decimal.NewFromInt(50)
	o, err = s.Open(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "jpy", o.Currency)
	assert.Equal(t, int64(100), o.TokensPerShare)

	p = params(assetID)
	p.TotalShares = math.MaxInt64 / domain.MaxTokensPerShare
	p.PricePerShare = decimal.NewFromInt(domain.MaxTokensPerShare)
	p.TokenPrice = decimal.NewFromInt(1)
	o, err = s.Open(context.Background(), p)
	require.NoError(t, err)
	assert.Positive(t, o.TokenCapacity())
	assert.Equal(t, p.TotalShares*domain.MaxTokensPerShare, o.TokenCapacity())
}

func TestOpen_RejectsUnknownAssetAndBadCodes(t *testing.T) {
	s, _, _, assetID := setup(t)
	p := params(uuid.New())
	_, err := s.Open(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	p = params(assetID)
	p.CountryCode = "KEN"
	_, err = s.Open(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrInvalidCountryCode)

	p = params(assetID)
	p.Currency = "dollars"
	_, err = s.Open(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
}

func TestOpen_FutureGoLiveIsDraftUntilActivated(t *testing.T) {
	s, _, c, assetID := setup(t)
	p := params(assetID)
	p.GoLiveAt = t0.Add(time.Hour)
	closeAt := t0.Add(3 * time.Hour)
	p.CloseAt = &closeAt
	o, err := s.Open(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferingDraft, o.Status)

	n, err := s.ActivateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	c.Advance(time.Hour)
	n, err = s.ActivateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	drafts, err := s.List(context.Background(), domain.OfferingDraft)
	require.NoError(t, err)
	assert.Empty(t, drafts)

	c.Advance(2 * time.Hour)
	n, err = s.CloseDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := s.Get(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferingClosed, got.Status)
	assert.NotNil(t, got.ClosedAt)
}

func TestClose_Idempotent(t *testing.T) {
	s, _, c, assetID := setup(t)
	o, err := s.Open(context.Background(), params(assetID))
	require.NoError(t, err)

	first, err := s.Close(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferingClosed, first.Status)

	c.Advance(time.Hour)
	second, err := s.Close(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, first.ClosedAt.Unix(), second.ClosedAt.Unix())

	_, err = s.Close(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrOfferingNotFound)
}

func TestAvailability_ReportsOpenTag(t *testing.T) {
	s, db, _, assetID := setup(t)
	o, err := s.Open(context.Background(), params(assetID))
	require.NoError(t, err)

	a, err := s.Availability(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.TokenCapacity)
	assert.Equal(t, int64(100), a.TokensRemaining)
	assert.Nil(t, a.OpenTag)

	require.NoError(t, db.Create(&domain.ShareTag{OfferingID: o.OfferingID, TagNumber: 1, TokensFilled: 10, TokensPerShare: 10, IsComplete: true}).Error)
	require.NoError(t, db.Create(&domain.ShareTag{OfferingID: o.OfferingID, TagNumber: 2, TokensFilled: 4, TokensPerShare: 10}).Error)

	a, err = s.Availability(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, int64(14), a.TokensFilled)
	assert.Equal(t, int64(86), a.TokensRemaining)
	assert.Equal(t, "8.6", a.AvailableShares.String())
	assert.Equal(t, int64(2), a.TagCount)
	assert.Equal(t, int64(1), a.CompleteTags)
	require.NotNil(t, a.OpenTag)
	assert.Equal(t, int64(2), a.OpenTag.TagNumber)
	assert.Equal(t, int64(6), a.OpenTag.Room)

	remaining, err := s.RemainingCapacity(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.Equal(t, int64(86), remaining)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return RefreshAvailable(tx, o, t0)
	}))
	got, err := s.Get(context.Background(), o.OfferingID)
	require.NoError(t, err)
	assert.True(t, got.AvailableShares.Equal(decimal.RequireFromString("8.6")))
}
