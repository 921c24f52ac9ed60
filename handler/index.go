package handler

import "lab_manager/booking"

var bookingService *booking.Service

// SetBookingService wires the service the booking handlers delegate to. Call before serving.
func SetBookingService(s *booking.Service) {
	bookingService = s
}
