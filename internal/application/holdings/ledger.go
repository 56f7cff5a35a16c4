package holdings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"herdshare-backend/internal/application/journal"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultMaxRetries = 5

// Ledger maintains the running holding aggregate per (buyer, offering).
type Ledger struct {
	DB         *gorm.DB
	Journal    *journal.Journal
	Clock      clock.Clock
	MaxRetries int
}

// Position is the numeric part of a holding.
type Position struct {
	Tokens          int64           `json:"tokens"`
	Shares          decimal.Decimal `json:"shares"`
	AvgCostPerShare decimal.Decimal `json:"avg_cost_per_share"`
}

// Apply adds one paid order to a position using the weighted average cost.
func Apply(p Position, order domain.Order) Position {
	newShares := p.Shares.Add(order.Shares)
	var avg decimal.Decimal
	switch {
	case newShares.IsZero():
		avg = decimal.Zero
	case p.Shares.IsZero():
		avg = order.Amount.DivRound(order.Shares, domain.ShareScale)
	default:
		avg = p.Shares.Mul(p.AvgCostPerShare).Add(order.Amount).DivRound(newShares, domain.ShareScale)
	}
	return Position{
		Tokens:          p.Tokens + order.Tokens,
		Shares:          newShares,
		AvgCostPerShare: avg,
	}
}

// Fold recomputes a position from scratch. Orders must be in holding_seq order.
func Fold(orders []domain.Order) Position {
	p := Position{Shares: decimal.Zero, AvgCostPerShare: decimal.Zero}
	for _, o := range orders {
		p = Apply(p, o)
	}
	return p
}

func positionOf(h *domain.Holding) Position {
	return Position{Tokens: h.Tokens, Shares: h.Shares, AvgCostPerShare: h.AvgCostPerShare}
}

func (l *Ledger) retries() int {
	if l.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return l.MaxRetries
}

// Get returns the stored holding.
func (l *Ledger) Get(ctx context.Context, buyerID, offeringID uuid.UUID) (*domain.Holding, error) {
	var h domain.Holding
	if err := l.DB.WithContext(ctx).
		Where("buyer_id = ? AND offering_id = ?", buyerID, offeringID).
		First(&h).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrHoldingNotFound
		}
		return nil, err
	}
	return &h, nil
}

// ListByBuyer returns the buyer's non-empty holdings.
func (l *Ledger) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Holding, error) {
	var hs []domain.Holding
	err := l.DB.WithContext(ctx).
		Where("buyer_id = ? AND tokens > 0", buyerID).
		Order("offering_id ASC").
		Find(&hs).Error
	return hs, err
}

// ApplyPaidOrder credits a newly paid order inside the caller's transaction. The returned
// holding's Version is the order's position in the holding history.
func (l *Ledger) ApplyPaidOrder(ctx context.Context, tx *gorm.DB, order *domain.Order) (*domain.Holding, error) {
	now := clock.OrReal(l.Clock).Now()
	for attempt := 0; attempt <= l.retries(); attempt++ {
		var h domain.Holding
		err := tx.Where("buyer_id = ? AND offering_id = ?", order.BuyerID, order.OfferingID).First(&h).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pos := Apply(Fold(nil), *order)
			h = domain.Holding{
				BuyerID:         order.BuyerID,
				OfferingID:      order.OfferingID,
				Tokens:          pos.Tokens,
				Shares:          pos.Shares,
				AvgCostPerShare: pos.AvgCostPerShare,
				Version:         1,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&h)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 1 {
				return &h, nil
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		pos := Apply(positionOf(&h), *order)
		ok, err := l.swap(tx, &h, pos, now)
		if err != nil {
			return nil, err
		}
		if ok {
			return &h, nil
		}
	}
	return nil, domain.ErrHoldingConflict
}

// swap writes pos if the holding still has the version that was read.
func (l *Ledger) swap(tx *gorm.DB, h *domain.Holding, pos Position, now time.Time) (bool, error) {
	res := tx.Model(&domain.Holding{}).
		Where("holding_id = ? AND version = ?", h.HoldingID, h.Version).
		Updates(map[string]interface{}{
			"tokens":             pos.Tokens,
			"shares":             pos.Shares,
			"avg_cost_per_share": pos.AvgCostPerShare,
			"version":            h.Version + 1,
			"updatedAt":          now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	h.Tokens = pos.Tokens
	h.Shares = pos.Shares
	h.AvgCostPerShare = pos.AvgCostPerShare
	h.Version++
	return true, nil
}

// Rebuild replaces the stored aggregate with a replay of the buyer's paid orders.
func (l *Ledger) Rebuild(ctx context.Context, tx *gorm.DB, buyerID, offeringID uuid.UUID) (*domain.Holding, error) {
	if tx == nil {
		var out *domain.Holding
		err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			h, err := l.Rebuild(ctx, tx, buyerID, offeringID)
			out = h
			return err
		})
		return out, err
	}

	orders, err := l.Journal.PaidOrders(ctx, tx, buyerID, offeringID)
	if err != nil {
		return nil, err
	}
	pos := Fold(orders)
	now := clock.OrReal(l.Clock).Now()

	for attempt := 0; attempt <= l.retries(); attempt++ {
		var h domain.Holding
		err := tx.Where("buyer_id = ? AND offering_id = ?", buyerID, offeringID).First(&h).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if pos.Tokens == 0 {
				return nil, domain.ErrHoldingNotFound
			}
			h = domain.Holding{
				BuyerID: buyerID, OfferingID: offeringID,
				Tokens: pos.Tokens, Shares: pos.Shares, AvgCostPerShare: pos.AvgCostPerShare,
				Version: 1, CreatedAt: now, UpdatedAt: now,
			}
			if err := tx.Create(&h).Error; err != nil {
				return nil, err
			}
			return &h, nil
		}
		if err != nil {
			return nil, err
		}
		ok, err := l.swap(tx, &h, pos, now)
		if err != nil {
			return nil, err
		}
		if ok {
			return &h, nil
		}
	}
	return nil, domain.ErrHoldingConflict
}

// Drift compares the stored aggregate with a replay from the journal.
type Drift struct {
	BuyerID    uuid.UUID `json:"buyer_id"`
	OfferingID uuid.UUID `json:"offering_id"`
	Stored     Position  `json:"stored"`
	Replayed   Position  `json:"replayed"`
	PaidOrders int       `json:"paid_orders"`
	InSync     bool      `json:"in_sync"`
}

// Verify replays paid orders and reports whether the stored holding matches exactly.
func (l *Ledger) Verify(ctx context.Context, buyerID, offeringID uuid.UUID) (*Drift, error) {
	orders, err := l.Journal.PaidOrders(ctx, nil, buyerID, offeringID)
	if err != nil {
		return nil, err
	}
	d := &Drift{
		BuyerID:    buyerID,
		OfferingID: offeringID,
		Replayed:   Fold(orders),
		Stored:     Fold(nil),
		PaidOrders: len(orders),
	}
	h, err := l.Get(ctx, buyerID, offeringID)
	switch {
	case err == nil:
		d.Stored = positionOf(h)
	case !errors.Is(err, domain.ErrHoldingNotFound):
		return nil, fmt.Errorf("load holding: %w", err)
	}
	d.InSync = Equal(d.Stored, d.Replayed)
	return d, nil
}

// Equal compares positions at the stored scale.
func Equal(a, b Position) bool {
	return a.Tokens == b.Tokens &&
		a.Shares.StringFixed(domain.ShareScale) == b.Shares.StringFixed(domain.ShareScale) &&
		a.AvgCostPerShare.StringFixed(domain.ShareScale) == b.AvgCostPerShare.StringFixed(domain.ShareScale)
}
