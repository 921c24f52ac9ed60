package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/copier"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/helper"
	"lab_manager/model"
	"lab_manager/utils"
)

const qrSize = 256

func toBookingResponse(b *model.Booking) model.BookingResponse {
	var res model.BookingResponse
	copier.Copy(&res, b)
	return res
}

func CreateBooking(c *fiber.Ctx) error {
	input, ok := c.Locals("inputCreateBooking").(model.CreateBookingInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	idempotencyKey, _ := c.Locals("idempotencyKey").(string)
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.CreateBooking(c.UserContext(), booking.CreateInput{
		UserId:         actor.UserId,
		BookingType:    model.BookingType(input.BookingType),
		LabId:          input.LabId,
		EquipmentId:    input.EquipmentId,
		StartTime:      input.StartTime,
		EndTime:        input.EndTime,
		Purpose:        input.Purpose,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, toBookingResponse(b))
}

func GetBookings(c *fiber.Ctx) error {
	filter, ok := c.Locals("bookingFilter").(booking.Filter)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	rows, total, err := bookingService.List(c.UserContext(), filter, actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}

	res := make([]model.BookingResponse, 0, len(rows))
	for i := range rows {
		res = append(res, toBookingResponse(&rows[i]))
	}
	filter = filter.Normalize()
	return utils.SuccessResponse(c, fiber.StatusOK, model.ResponseCustom{
		Rows:       res,
		Limit:      utils.IntPtr(filter.Limit),
		Page:       utils.IntPtr(filter.Page),
		TotalCount: total,
	})
}

func GetBookingById(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.Get(c.UserContext(), id, actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, toBookingResponse(b))
}

func UpdateBookingStatus(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	input, ok := c.Locals("inputUpdateBookingStatus").(model.UpdateBookingStatusInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.UpdateStatus(c.UserContext(), id, model.BookingStatus(input.Status), actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, toBookingResponse(b))
}

func CancelBooking(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.Cancel(c.UserContext(), id, actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, toBookingResponse(b))
}

func RescheduleBooking(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	input, ok := c.Locals("inputRescheduleBooking").(model.RescheduleBookingInput)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.Reschedule(c.UserContext(), id, booking.RescheduleInput{
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
		Purpose:   input.Purpose,
	}, actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, toBookingResponse(b))
}

// GetBookingQR renders the check-in QR code for a booking the caller may see.
func GetBookingQR(c *fiber.Ctx) error {
	id, ok := c.Locals("inputId").(uint)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.PARSE_DATA_TO_LOCALS, errors.New("PARSE DATA TO LOCALS FAIL"))
	}
	actor, ok := helper.GetActorFromToken(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.UNAUTHORIZED, errors.New("no actor in token"))
	}

	b, err := bookingService.Get(c.UserContext(), id, actor)
	if err != nil {
		return BookingErrorResponse(c, err)
	}
	png, err := utils.GenerateQRCode(utils.CheckInPayload(b.PublicCode), qrSize)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}
