package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"herdshare-backend/internal/config"
	"herdshare-backend/internal/middleware"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminKey      = "test-admin-key"
	webhookSecret = "whsec_test"
)

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	app *fiber.App
	rdb *redis.Client
	gw  *testutil.Gateway
	svc *Services
}

func newHarness(t *testing.T) *harness {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{
		Env:                 "test",
		PaymentCurrency:     "kes",
		ReservationTTL:      15 * time.Minute,
		AdminKeyHash:        string(hash),
		StripeWebhookSecret: webhookSecret,
	}
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	gw := &testutil.Gateway{}
	svc := NewServices(db, rdb, gw, clock.NewFake(t0), cfg)
	return &harness{app: New(cfg, db, rdb, svc), rdb: rdb, gw: gw, svc: svc}
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  struct {
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (int, envelope) {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (h *harness) webhook(t *testing.T, payload []byte, sig string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", sig)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

var admin = map[string]string{middleware.AdminKeyHeader: adminKey}

func (h *harness) openOffering(t *testing.T) string {
	t.Helper()
	status, env := h.do(t, "POST", "/api/v1/admin/assets", map[string]interface{}{
		"type": "livestock",
		"name": "Boran heifer",
		"meta": map[string]interface{}{"breed": "Boran", "birth_year": 2024},
	}, admin)
	require.Equal(t, http.StatusCreated, status)
	var asset struct {
		AssetID string `json:"asset_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &asset))

	status, env = h.do(t, "POST", "/api/v1/admin/offerings", map[string]interface{}{
		"asset_id":        asset.AssetID,
		"total_shares":    2,
		"price_per_share": "100",
		"token_price":     "10",
		"go_live_at":      t0.Add(-time.Hour).Format(time.RFC3339),
	}, admin)
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	var offering struct {
		OfferingID     string `json:"offering_id"`
		Status         string `json:"status"`
		TokensPerShare int64  `json:"tokens_per_share"`
		Currency       string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &offering))
	assert.Equal(t, "live", offering.Status)
	assert.Equal(t, int64(10), offering.TokensPerShare)
	assert.Equal(t, "kes", offering.Currency)
	return offering.OfferingID
}

func TestFlow_PlacePayAndReadHoldings(t *testing.T) {
	h := newHarness(t)
	offeringID := h.openOffering(t)
	buyer := uuid.New()
	cookie := testutil.Login(t, h.rdb, "sid-buyer", middleware.SessionUser{UserID: buyer.String(), Role: "buyer"})
	asBuyer := map[string]string{"Cookie": cookie}

	status, env := h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 4}, asBuyer)
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	var placed struct {
		Order struct {
			OrderNumber     string `json:"order_number"`
			PaymentIntentID string `json:"payment_intent_id"`
			TagNumber       int64  `json:"tag_number"`
			Status          string `json:"status"`
		} `json:"order"`
		ClientSecret string `json:"client_secret"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.Equal(t, "pending", placed.Order.Status)
	assert.Equal(t, int64(1), placed.Order.TagNumber)
	assert.Equal(t, "pi_test_1", placed.Order.PaymentIntentID)
	assert.Equal(t, "pi_test_1_secret", placed.ClientSecret)

	status, env = h.do(t, "GET", "/api/v1/offerings/"+offeringID+"/availability", nil, nil)
	require.Equal(t, http.StatusOK, status)
	var av struct {
		TokensFilled    int64 `json:"tokens_filled"`
		TokensRemaining int64 `json:"tokens_remaining"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &av))
	assert.Equal(t, int64(4), av.TokensFilled)
	assert.Equal(t, int64(16), av.TokensRemaining)

	payload := testutil.StripeEvent("payment_intent.succeeded", `{"id":"pi_test_1","object":"payment_intent"}`)
	assert.Equal(t, http.StatusOK, h.webhook(t, payload, testutil.StripeSignature(webhookSecret, payload)))

	status, env = h.do(t, "GET", "/api/v1/orders/"+placed.Order.OrderNumber, nil, asBuyer)
	require.Equal(t, http.StatusOK, status)
	var order struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "paid", order.Status)

	status, env = h.do(t, "GET", "/api/v1/buyers/"+buyer.String()+"/holdings", nil, asBuyer)
	require.Equal(t, http.StatusOK, status)
	var holdings []struct {
		Tokens int64 `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(4), holdings[0].Tokens)

	status, env = h.do(t, "GET", "/api/v1/admin/holdings/verify?buyer_id="+buyer.String()+"&offering_id="+offeringID, nil, admin)
	require.Equal(t, http.StatusOK, status)
	var drift struct {
		InSync bool `json:"in_sync"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &drift))
	assert.True(t, drift.InSync)
}

func TestFlow_OtherBuyersCannotSeeOrders(t *testing.T) {
	h := newHarness(t)
	offeringID := h.openOffering(t)
	owner := uuid.New()
	asOwner := map[string]string{"Cookie": testutil.Login(t, h.rdb, "sid-owner", middleware.SessionUser{UserID: owner.String(), Role: "buyer"})}
	asOther := map[string]string{"Cookie": testutil.Login(t, h.rdb, "sid-other", middleware.SessionUser{UserID: uuid.NewString(), Role: "buyer"})}

	status, env := h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 2}, asOwner)
	require.Equal(t, http.StatusCreated, status)
	var placed struct {
		Order struct {
			OrderNumber string `json:"order_number"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &placed))

	status, _ = h.do(t, "GET", "/api/v1/orders/"+placed.Order.OrderNumber, nil, asOther)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = h.do(t, "GET", "/api/v1/buyers/"+owner.String()+"/holdings", nil, asOther)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{
		"tokens": 1, "buyer_id": owner.String(),
	}, asOther)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestFlow_RejectionsMapToConflict(t *testing.T) {
	h := newHarness(t)
	offeringID := h.openOffering(t)
	asBuyer := map[string]string{"Cookie": testutil.Login(t, h.rdb, "sid", middleware.SessionUser{UserID: uuid.NewString(), Role: "buyer"})}

	status, env := h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 11}, asBuyer)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "order_exceeds_tag_capacity", env.Error.Details["code"])
	// the intent created for the rejected order is cancelled again
	assert.Equal(t, []string{"pi_test_1"}, h.gw.Cancelled)

	status, env = h.do(t, "GET", "/api/v1/payments/pi_test_1/events", nil, admin)
	require.Equal(t, http.StatusOK, status)
	var events []struct {
		EventType   string  `json:"event_type"`
		OrderNumber *string `json:"order_number"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "rejected", events[0].EventType)
	assert.Nil(t, events[0].OrderNumber)

	status, _ = h.do(t, "GET", "/api/v1/payments/pi_test_1/events", nil, asBuyer)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 0}, asBuyer)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_tokens", env.Error.Details["code"])

	status, _ = h.do(t, "POST", "/api/v1/admin/offerings/"+offeringID+"/close", nil, admin)
	require.Equal(t, http.StatusOK, status)
	status, env = h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 1}, asBuyer)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "offering_closed", env.Error.Details["code"])
}

func TestFlow_AdminRoutesRequireCredentials(t *testing.T) {
	h := newHarness(t)
	body := map[string]interface{}{"country_code": "KE", "count": 3}

	status, _ := h.do(t, "POST", "/api/v1/admin/tag-pool/seed", body, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do(t, "POST", "/api/v1/admin/tag-pool/seed", body, map[string]string{middleware.AdminKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	asBuyer := map[string]string{"Cookie": testutil.Login(t, h.rdb, "sid", middleware.SessionUser{UserID: uuid.NewString(), Role: "buyer"})}
	status, _ = h.do(t, "POST", "/api/v1/admin/tag-pool/seed", body, asBuyer)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.do(t, "POST", "/api/v1/admin/tag-pool/seed", body, admin)
	require.Equal(t, http.StatusCreated, status)
	var seeded struct {
		Created   int    `json:"created"`
		LastLabel string `json:"last_label"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &seeded))
	assert.Equal(t, 3, seeded.Created)
	assert.Equal(t, "KE-000003", seeded.LastLabel)

	status, env = h.do(t, "GET", "/api/v1/admin/tag-pool/ke/stats", nil, admin)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		Available int64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(3), stats.Available)
}

func TestWebhook_RejectsBadSignatureAndIgnoresUnknownIntents(t *testing.T) {
	h := newHarness(t)
	payload := testutil.StripeEvent("payment_intent.succeeded", `{"id":"pi_unknown","object":"payment_intent"}`)

	assert.Equal(t, http.StatusBadRequest, h.webhook(t, payload, testutil.StripeSignature("whsec_other", payload)))
	assert.Equal(t, http.StatusOK, h.webhook(t, payload, testutil.StripeSignature(webhookSecret, payload)))

	other := testutil.StripeEvent("customer.created", `{"id":"cus_1","object":"customer"}`)
	assert.Equal(t, http.StatusOK, h.webhook(t, other, testutil.StripeSignature(webhookSecret, other)))
}

func TestWebhook_FailureReleasesAndLatePaymentIsRefunded(t *testing.T) {
	h := newHarness(t)
	offeringID := h.openOffering(t)
	asBuyer := map[string]string{"Cookie": testutil.Login(t, h.rdb, "sid", middleware.SessionUser{UserID: uuid.NewString(), Role: "buyer"})}

	status, _ := h.do(t, "POST", "/api/v1/offerings/"+offeringID+"/orders", map[string]interface{}{"tokens": 10}, asBuyer)
	require.Equal(t, http.StatusCreated, status)

	failed := testutil.StripeEvent("payment_intent.payment_failed", `{"id":"pi_test_1","object":"payment_intent"}`)
	require.Equal(t, http.StatusOK, h.webhook(t, failed, testutil.StripeSignature(webhookSecret, failed)))

	remaining, err := h.svc.Offerings.RemainingCapacity(context.Background(), uuid.MustParse(offeringID))
	require.NoError(t, err)
	assert.Equal(t, int64(20), remaining)

	late := testutil.StripeEvent("payment_intent.succeeded", `{"id":"pi_test_1","object":"payment_intent"}`)
	require.Equal(t, http.StatusOK, h.webhook(t, late, testutil.StripeSignature(webhookSecret, late)))
	assert.Equal(t, []string{"pi_test_1"}, h.gw.Refunded)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest("GET", "/health/json", nil)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "herdshare-api", out["service"])
	assert.NotNil(t, out["allocation"])

	resp, err = h.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
