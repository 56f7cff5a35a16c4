package offerings

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	offsvc "herdshare-backend/internal/application/offerings"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/pkg/clock"
	"herdshare-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOfferingsTest(t *testing.T) (*fiber.App, *gorm.DB) {
	db := testutil.NewDB(t)
	h := &Handlers{
		Service:         &offsvc.Service{DB: db, Clock: clock.NewFake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))},
		DefaultCurrency: "usd",
	}
	app := fiber.New()
	app.Get("/offerings", h.List)
	app.Get("/offerings/:id", h.Get)
	app.Get("/offerings/:id/availability", h.Availability)
	app.Post("/offerings", h.Open)
	return app, db
}

func TestGet_InvalidUUID(t *testing.T) {
	app, _ := setupOfferingsTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/offerings/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAvailability_UnknownOffering(t *testing.T) {
	app, _ := setupOfferingsTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/offerings/8f7a1c52-0d8e-4a53-9f77-3c55b0f0c1aa/availability", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestList_InvalidStatusFilter(t *testing.T) {
	app, _ := setupOfferingsTest(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/offerings?status=sold", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestOpen_DefaultsCurrencyAndRejectsBadCapacity(t *testing.T) {
	app, db := setupOfferingsTest(t)
	asset := domain.Asset{Type: domain.AssetTypeLivestock, Name: "Ankole bull"}
	require.NoError(t, db.Create(&asset).Error)

	post := func(body map[string]interface{}) (int, map[string]interface{}) {
		b, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", "/offerings", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		return resp.StatusCode, result
	}

	status, result := post(map[string]interface{}{
		"asset_id":        asset.AssetID.String(),
		"total_shares":    5,
		"price_per_share": 100,
		"token_price":     200,
		"go_live_at":      "2026-05-01T00:00:00Z",
	})
	assert.Equal(t, 400, status)
	assert.Equal(t, "error", result["status"])

	status, result = post(map[string]interface{}{
		"asset_id":        asset.AssetID.String(),
		"total_shares":    5,
		"price_per_share": 100,
		"token_price":     5,
		"go_live_at":      "2026-05-01T00:00:00Z",
	})
	require.Equal(t, 201, status)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "usd", data["currency"])
	assert.Equal(t, float64(20), data["tokens_per_share"])
	assert.Equal(t, "live", data["status"])
}
