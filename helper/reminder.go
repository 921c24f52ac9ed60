package helper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/constants"
	"lab_manager/model"
)

var reminderScheduler *cron.Cron

// ReminderJob announces confirmed bookings that start within Lead. Each booking is announced once.
type ReminderJob struct {
	Service   *booking.Service
	Publisher booking.Publisher
	Mark      Marker
	Lead      time.Duration
	Now       func() time.Time
}

func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	now := j.Now()
	until := now.Add(j.Lead)
	sent := 0

	err := forEachBooking(ctx, j.Service, booking.Filter{Status: model.BookingConfirmed, From: &now, To: &until}, func(b *model.Booking) {
		if b.StartTime.Before(now) {
			return
		}
		evt := booking.Event{Type: booking.EventStartingSoon, Booking: *b, OccurredAt: now}
		key := fmt.Sprintf(constants.BOOKING_REMINDER_KEY, b.ID)
		published, err := publishOnce(ctx, j.Mark, j.Publisher, key, j.Lead+time.Hour, evt)
		if err != nil {
			logrus.WithError(err).WithField("booking_id", b.ID).Warn("publish reminder failed")
			return
		}
		if !published {
			return
		}
		sent++
	})
	return sent, err
}

func StartReminderScheduler(job *ReminderJob) {
	reminderScheduler = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	_, err := reminderScheduler.AddFunc("* * * * *", func() {
		sent, err := job.Run(context.Background())
		if err != nil {
			logrus.WithError(err).Error("booking reminder scan failed")
			return
		}
		if sent > 0 {
			logrus.WithField("count", sent).Info("booking reminders published")
		}
	})
	if err != nil {
		logrus.WithError(err).Error("failed to schedule booking reminders")
		return
	}

	reminderScheduler.Start()
	logrus.Info("booking reminder scheduler started (every minute)")
}

func StopReminderScheduler() {
	if reminderScheduler != nil {
		reminderScheduler.Stop()
		logrus.Info("booking reminder scheduler stopped")
	}
}
