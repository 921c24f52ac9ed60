package helper

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/model"
)

// schedulerActor lets background jobs read every booking.
var schedulerActor = booking.Actor{Role: constants.ROLE_ADMIN}

// Marker records which notifications went out. Mark reports whether this call was the first for
// key; Unmark clears it so a failed delivery is retried on the next run.
type Marker interface {
	Mark(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

type RedisMarker struct {
	client *redis.Client
}

func NewRedisMarker(client *redis.Client) *RedisMarker {
	return &RedisMarker{client: client}
}

func (m *RedisMarker) Mark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.client.SetNX(ctx, key, 1, ttl).Result()
}

func (m *RedisMarker) Unmark(ctx context.Context, key string) error {
	return m.client.Del(ctx, key).Err()
}

// publishOnce publishes evt unless key is already marked. The mark is dropped again when the
// publish fails.
func publishOnce(ctx context.Context, mark Marker, pub booking.Publisher, key string, ttl time.Duration, evt booking.Event) (bool, error) {
	first, err := mark.Mark(ctx, key, ttl)
	if err != nil || !first {
		return false, err
	}
	if err := pub.Publish(ctx, evt); err != nil {
		if uerr := mark.Unmark(ctx, key); uerr != nil {
			logrus.WithError(uerr).WithField("key", key).Warn("clear notification marker failed")
		}
		return false, err
	}
	return true, nil
}

// forEachBooking pages through every booking matching f.
func forEachBooking(ctx context.Context, svc *booking.Service, f booking.Filter, fn func(b *model.Booking)) error {
	f.Limit = booking.MaxPageLimit
	for page := 1; ; page++ {
		f.Page = page
		rows, total, err := svc.List(ctx, f, schedulerActor)
		if err != nil {
			return err
		}
		for i := range rows {
			fn(&rows[i])
		}
		if len(rows) == 0 || int64(page*f.Limit) >= total {
			return nil
		}
	}
}
