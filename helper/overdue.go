package helper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/model"
)

var overdueScheduler gocron.Scheduler

// OverdueJob flags bookings whose window has ended while still pending or confirmed. It only
// publishes events; closing them out stays a staff decision.
type OverdueJob struct {
	Service   *booking.Service
	Publisher booking.Publisher
	Mark      Marker
	Now       func() time.Time
}

func (j *OverdueJob) Run(ctx context.Context) (int, error) {
	now := j.Now()
	flagged := 0

	for _, status := range booking.ActiveStatuses {
		err := forEachBooking(ctx, j.Service, booking.Filter{Status: status, To: &now}, func(b *model.Booking) {
			if b.EndTime.After(now) {
				return
			}
			evt := booking.Event{Type: booking.EventOverdue, Booking: *b, OccurredAt: now}
			key := fmt.Sprintf(constants.BOOKING_OVERDUE_KEY, b.ID)
			published, err := publishOnce(ctx, j.Mark, j.Publisher, key, 7*24*time.Hour, evt)
			if err != nil {
				logrus.WithError(err).WithField("booking_id", b.ID).Warn("publish overdue booking failed")
				return
			}
			if !published {
				return
			}
			flagged++
		})
		if err != nil {
			return flagged, err
		}
	}
	return flagged, nil
}

func StartOverdueScheduler(job *OverdueJob, loc *time.Location) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		logrus.WithError(err).Fatal("failed to create overdue scheduler")
	}

	overdueScheduler = s

	_, err = s.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(
				gocron.NewAtTime(0, 5, 0),
			),
		),
		gocron.NewTask(func() {
			flagged, err := job.Run(context.Background())
			if err != nil {
				logrus.WithError(err).Error("overdue booking sweep failed")
				return
			}
			logrus.WithField("count", flagged).Info("overdue booking sweep finished")
		}),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to schedule overdue sweep")
	}

	s.Start()
	logrus.WithField("location", loc.String()).Info("overdue booking scheduler started (00:05 daily)")
}

func StopOverdueScheduler() {
	if overdueScheduler != nil {
		if err := overdueScheduler.Shutdown(); err != nil {
			logrus.WithError(err).Warn("overdue scheduler shutdown")
		}
	}
}
