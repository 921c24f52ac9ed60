package router

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"lab_manager/constants"
	"lab_manager/handler"
	"lab_manager/middleware"
	"lab_manager/validate"
)

func SetupRoutes(app *fiber.App) {
	api := app.Group("/api", logger.New())
	v1 := api.Group("/v1")
	staffOnly := middleware.RequireRole(constants.ROLE_ADMIN, constants.ROLE_LAB_MANAGER)

	auth := v1.Group("/auth")
	auth.Post("/login", validate.Login(), handler.Login)

	account := v1.Group("/account")
	account.Get("/me", middleware.Protected(), handler.Me)

	labs := v1.Group("/labs")
	labs.Get("/", middleware.Protected(), validate.FilterLab(), handler.GetLabs)
	labs.Get("/:slug", middleware.Protected(), handler.GetLabBySlug)
	labs.Post("/", middleware.Protected(), staffOnly, validate.CreateLab(), handler.CreateLab)
	labs.Patch("/:labId/active", middleware.Protected(), staffOnly, validate.ActiveLab("labId"), handler.ActiveLab)

	equipment := v1.Group("/equipment")
	equipment.Post("/", middleware.Protected(), staffOnly, validate.CreateEquipment(), handler.CreateEquipment)
	equipment.Patch("/:equipmentId/status", middleware.Protected(), staffOnly, validate.UpdateEquipmentStatus("equipmentId"), handler.UpdateEquipmentStatus)

	SetupBookingRoutes(v1)

	ws := app.Group("/ws", middleware.Protected(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/labs/:labId/bookings", websocket.New(handler.BookingBoard))
}

func SetupBookingRoutes(v1 fiber.Router) {
	bookings := v1.Group("/bookings", middleware.Protected())
	bookings.Post("/", validate.CreateBooking(), handler.CreateBooking)
	bookings.Get("/", validate.FilterBooking(), handler.GetBookings)
	bookings.Get("/:bookingId", validate.GetById("bookingId"), handler.GetBookingById)
	bookings.Get("/:bookingId/qr", validate.GetById("bookingId"), handler.GetBookingQR)
	bookings.Patch("/:bookingId/status", validate.UpdateBookingStatus("bookingId"), handler.UpdateBookingStatus)
	bookings.Post("/:bookingId/cancel", validate.GetById("bookingId"), handler.CancelBooking)
	bookings.Put("/:bookingId", validate.RescheduleBooking("bookingId"), handler.RescheduleBooking)
}
