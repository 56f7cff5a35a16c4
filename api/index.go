// Package handler exposes the HerdShare allocation API as a Vercel function. Reservations
// are not swept here; run cmd/api alongside it or release through the admin route.
package handler

import (
	"net/http"

	"herdshare-backend/bootstrap"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// app is built once per cold start from the same config and router as cmd/api.
var app *fiber.App

func init() {
	var err error
	app, err = bootstrap.New()
	if err != nil {
		panic("herdshare api: " + err.Error())
	}
}

// Handler serves every rewritten request, including the Stripe webhook, through the fiber app.
func Handler(w http.ResponseWriter, r *http.Request) {
	r.RequestURI = r.URL.String()
	adaptor.FiberApp(app)(w, r)
}
