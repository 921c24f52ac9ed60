package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/utils"
)

var kindStatus = map[booking.Kind]int{
	booking.KindValidation:          fiber.StatusBadRequest,
	booking.KindInvalidRange:        fiber.StatusBadRequest,
	booking.KindInPast:              fiber.StatusBadRequest,
	booking.KindResourceNotFound:    fiber.StatusNotFound,
	booking.KindNotFound:            fiber.StatusNotFound,
	booking.KindResourceInactive:    fiber.StatusUnprocessableEntity,
	booking.KindResourceUnavailable: fiber.StatusUnprocessableEntity,
	booking.KindConflict:            fiber.StatusConflict,
	booking.KindIllegalTransition:   fiber.StatusConflict,
	booking.KindAlreadyTerminal:     fiber.StatusConflict,
	booking.KindForbidden:           fiber.StatusForbidden,
	booking.KindLockTimeout:         fiber.StatusServiceUnavailable,
}

func StatusForKind(kind booking.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// BookingErrorResponse writes err using the booking error envelope. Errors without a kind are
// infrastructure failures and become 500s.
func BookingErrorResponse(c *fiber.Ctx, err error) error {
	var bookingErr *booking.Error
	if !errors.As(err, &bookingErr) {
		logrus.WithError(err).WithField("path", c.Path()).Error("booking request failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}

	body := fiber.Map{
		"message": bookingErr.Message,
		"error":   bookingErr.Error(),
		"kind":    bookingErr.Kind,
	}
	if bookingErr.Conflict != nil {
		body["conflict"] = fiber.Map{
			"bookingId": bookingErr.ConflictID,
			"start":     bookingErr.Conflict.Start,
			"end":       bookingErr.Conflict.End,
		}
	}
	return c.Status(StatusForKind(bookingErr.Kind)).JSON(body)
}
