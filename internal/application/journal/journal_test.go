package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newOrder(buyer, offering uuid.UUID, number, intent string, status domain.OrderStatus) domain.Order {
	return domain.Order{
		OrderNumber:     number,
		BuyerID:         buyer,
		OfferingID:      offering,
		TagNumber:       1,
		Tokens:          1,
		Shares:          decimal.RequireFromString("0.1"),
		Amount:          decimal.NewFromInt(10),
		Currency:        "usd",
		Status:          status,
		PaymentIntentID: intent,
		ReservedUntil:   t0.Add(15 * time.Minute),
	}
}

func TestRecordAttemptAndEvents(t *testing.T) {
	db := testutil.NewDB(t)
	j := &Journal{DB: db, Clock: clock.NewFake(t0)}
	ctx := context.Background()
	buyer, offering := uuid.New(), uuid.New()

	require.NoError(t, j.RecordAttempt(ctx, nil, Entry{
		Type: domain.EventPlaced, OrderNumber: "ORD-A", PaymentIntentID: "pi_a",
		BuyerID: buyer, OfferingID: offering, Data: map[string]interface{}{"tokens": 5},
	}))
	require.NoError(t, j.RecordAttempt(ctx, nil, Entry{
		Type: domain.EventConfirmed, OrderNumber: "ORD-A", PaymentIntentID: "pi_a",
	}))
	require.NoError(t, j.RecordAttempt(ctx, nil, Entry{
		Type: domain.EventRejected, PaymentIntentID: "pi_b",
	}))

	evs, err := j.Events(ctx, "ORD-A")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.EventPlaced, evs[0].EventType)
	assert.Equal(t, domain.EventConfirmed, evs[1].EventType)
	assert.Less(t, evs[0].Seq, evs[1].Seq)
	require.NotNil(t, evs[0].BuyerID)
	assert.Equal(t, buyer, *evs[0].BuyerID)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(evs[0].EventData, &data))
	assert.Equal(t, float64(5), data["tokens"])

	rejected, err := j.EventsByPaymentIntent(ctx, "pi_b")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Nil(t, rejected[0].OrderNumber)
}

func TestFindByPaymentIntent(t *testing.T) {
	db := testutil.NewDB(t)
	j := &Journal{DB: db}
	ctx := context.Background()
	o := newOrder(uuid.New(), uuid.New(), "ORD-1", "pi_1", domain.OrderPending)
	require.NoError(t, db.Create(&o).Error)

	got, err := j.FindByPaymentIntent(ctx, nil, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", got.OrderNumber)

	_, err = j.FindByPaymentIntent(ctx, nil, "pi_missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	got, err = j.FindByOrderNumber(ctx, nil, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.PaymentIntentID)
	_, err = j.FindByOrderNumber(ctx, nil, "ORD-2")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPaidOrders_OrderedByHoldingSeq(t *testing.T) {
	db := testutil.NewDB(t)
	j := &Journal{DB: db}
	buyer, offering := uuid.New(), uuid.New()

	second := newOrder(buyer, offering, "ORD-1", "pi_1", domain.OrderPaid)
	second.HoldingSeq = 2
	first := newOrder(buyer, offering, "ORD-2", "pi_2", domain.OrderPaid)
	first.HoldingSeq = 1
	pending := newOrder(buyer, offering, "ORD-3", "pi_3", domain.OrderPending)
	other := newOrder(uuid.New(), offering, "ORD-4", "pi_4", domain.OrderPaid)
	for _, o := range []*domain.Order{&second, &first, &pending, &other} {
		require.NoError(t, db.Create(o).Error)
	}

	orders, err := j.PaidOrders(context.Background(), nil, buyer, offering)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ORD-2", orders[0].OrderNumber)
	assert.Equal(t, "ORD-1", orders[1].OrderNumber)
}

func TestExpiredPending(t *testing.T) {
	db := testutil.NewDB(t)
	j := &Journal{DB: db}
	buyer, offering := uuid.New(), uuid.New()

	stale := newOrder(buyer, offering, "ORD-1", "pi_1", domain.OrderPending)
	stale.ReservedUntil = t0.Add(-time.Minute)
	fresh := newOrder(buyer, offering, "ORD-2", "pi_2", domain.OrderPending)
	fresh.ReservedUntil = t0.Add(time.Minute)
	paid := newOrder(buyer, offering, "ORD-3", "pi_3", domain.OrderPaid)
	paid.ReservedUntil = t0.Add(-time.Hour)
	for _, o := range []*domain.Order{&stale, &fresh, &paid} {
		require.NoError(t, db.Create(o).Error)
	}

	orders, err := j.ExpiredPending(context.Background(), t0, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ORD-1", orders[0].OrderNumber)

	mine, err := j.OrdersByBuyer(context.Background(), buyer, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}
