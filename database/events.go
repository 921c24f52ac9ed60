package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lab_manager/booking"
	"lab_manager/constants"
)

// RedisPublisher fans booking events out on the per-lab channel the live board subscribes to.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, evt booking.Event) error {
	channel, ok := LabChannel(evt)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	return p.client.Publish(ctx, channel, payload).Err()
}

// LabChannel is the pub/sub channel for the lab evt's booking belongs to.
func LabChannel(evt booking.Event) (string, bool) {
	if evt.Booking.LabId == nil {
		return "", false
	}
	return fmt.Sprintf(constants.LAB_BOOKING_CHANNEL, *evt.Booking.LabId), true
}
