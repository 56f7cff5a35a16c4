// Package httperr maps service errors onto the standard error envelope.
package httperr

import (
	"errors"

	"herdshare-backend/internal/application/assets"
	"herdshare-backend/internal/application/tagpool"
	"herdshare-backend/internal/domain"
	"herdshare-backend/internal/infrastructure/payments"
	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	badRequest = []error{
		domain.ErrInvalidCapacity, domain.ErrInvalidTokens, domain.ErrPaymentIntentRequired,
		domain.ErrInvalidAssetType, domain.ErrInvalidCountryCode, domain.ErrInvalidCurrency,
		domain.ErrInvalidReleaseReason, domain.ErrInvalidRelated,
		assets.ErrNameRequired, tagpool.ErrInvalidSeedCount,
	}
	notFound = []error{
		domain.ErrOfferingNotFound, domain.ErrAssetNotFound, domain.ErrOrderNotFound,
		domain.ErrHoldingNotFound,
	}
	conflict = []error{
		domain.ErrOfferingClosed, domain.ErrOfferingNotLive, domain.ErrOrderExceedsTagCapacity,
		domain.ErrCapacityExhausted, domain.ErrOrderNotPending, domain.ErrOrderNotPaid,
		domain.ErrReservationActive, domain.ErrTagPoolEmpty, domain.ErrHoldingConflict,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case isAny(err, badRequest):
		return fiber.StatusBadRequest
	case isAny(err, notFound):
		return fiber.StatusNotFound
	case isAny(err, conflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrPaymentMismatch):
		return fiber.StatusForbidden
	case errors.Is(err, payments.ErrGatewayNotConfigured):
		return fiber.StatusNotImplemented
	}
	return fiber.StatusInternalServerError
}

// Write renders err with its status and a machine-readable code. Unknown errors are
// logged and reported as "Internal Server Error".
func Write(c *fiber.Ctx, err error) error {
	status := Status(err)
	if status == fiber.StatusInternalServerError {
		logger := zerolog.Ctx(c.UserContext())
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
		logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return response.Error(c, "Internal Server Error", status, nil)
	}
	return response.Error(c, unwrapMessage(err), status, fiber.Map{"code": domain.Code(err)})
}

// unwrapMessage returns the innermost message so wrapping context stays out of responses.
func unwrapMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
