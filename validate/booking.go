package validate

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/model"
	"lab_manager/utils"
)

const maxIdempotencyKeyLength = 128

func CreateBooking() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.CreateBookingInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		key := c.Get("Idempotency-Key")
		if len(key) > maxIdempotencyKeyLength {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, errors.New("Idempotency-Key is too long"))
		}

		c.Locals("inputCreateBooking", input)
		c.Locals("idempotencyKey", key)
		return c.Next()
	}
}

func UpdateBookingStatus(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseId(c, key)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, err)
		}
		var input model.UpdateBookingStatusInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputId", id)
		c.Locals("inputUpdateBookingStatus", input)
		return c.Next()
	}
}

func RescheduleBooking(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseId(c, key)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, err)
		}
		var input model.RescheduleBookingInput
		if err := bindBody(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("inputId", id)
		c.Locals("inputRescheduleBooking", input)
		return c.Next()
	}
}

// FilterBooking turns the list query string into a booking.Filter.
func FilterBooking() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input model.FilterBookingInput
		if err := bindQuery(c, &input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		filter := booking.Filter{
			UserId:      input.UserId,
			LabId:       input.LabId,
			EquipmentId: input.EquipmentId,
			Status:      model.BookingStatus(input.Status),
		}
		if input.Limit != nil {
			filter.Limit = *input.Limit
		}
		if input.Page != nil {
			filter.Page = *input.Page
		}
		var err error
		if filter.From, err = parseTime(input.From); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}
		if filter.To, err = parseTime(input.To); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals("bookingFilter", filter)
		return c.Next()
	}
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
