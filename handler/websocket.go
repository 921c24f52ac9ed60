package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/database"
	"lab_manager/model"
)

// BookingBoard streams a lab's booking events to one websocket client. The client first receives
// the active bookings from now on, then every event published on the lab's channel.
func BookingBoard(c *websocket.Conn) {
	id64, err := strconv.ParseUint(c.Params("labId"), 10, 64)
	if err != nil || id64 == 0 {
		c.WriteJSON(map[string]string{"error": "invalid lab id"})
		c.Close()
		return
	}
	labId := uint(id64)
	log := logrus.WithField("lab_id", labId)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
	}()

	if snapshot, err := boardSnapshot(ctx, labId); err != nil {
		log.WithError(err).Warn("booking board snapshot failed")
	} else if err := c.WriteJSON(snapshot); err != nil {
		return
	}

	pubsub := database.Redis.Subscribe(ctx, fmt.Sprintf(constants.LAB_BOOKING_CHANNEL, labId))
	defer pubsub.Close()

	// Reads only detect the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	channel := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-channel:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.WithError(err).Debug("booking board client gone")
				return
			}
		}
	}
}

func boardSnapshot(ctx context.Context, labId uint) ([]model.BookingResponse, error) {
	now := time.Now()
	board := booking.Actor{Role: constants.ROLE_ADMIN}
	rows, _, err := bookingService.List(ctx, booking.Filter{LabId: &labId, From: &now, Limit: booking.MaxPageLimit}, board)
	if err != nil {
		return nil, err
	}
	res := make([]model.BookingResponse, 0, len(rows))
	for i := range rows {
		if booking.IsActive(rows[i].Status) {
			res = append(res, toBookingResponse(&rows[i]))
		}
	}
	return res, nil
}
