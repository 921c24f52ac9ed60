package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"

	"lab_manager/booking"
	"lab_manager/config"
	"lab_manager/database"
	"lab_manager/handler"
	"lab_manager/helper"
	"lab_manager/router"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(config.Default("LOG_LEVEL", "info")); err == nil {
		logrus.SetLevel(level)
	}

	database.ConnectDB()
	database.ConnectRedis()

	loc, err := time.LoadLocation(config.Default("APP_TIMEZONE", "UTC"))
	if err != nil {
		logrus.WithError(err).Warn("unknown APP_TIMEZONE, using UTC")
		loc = time.UTC
	}

	publisher := database.NewRedisPublisher(database.Redis)
	store := database.NewBookingStore(database.DB, config.Duration("BOOKING_LOCK_TIMEOUT_MS", 3000, time.Millisecond))
	service := booking.NewService(store,
		booking.WithWindow(booking.WindowOptions{
			GraceWindow: config.Duration("BOOKING_GRACE_WINDOW_SECONDS", 300, time.Second),
			Granularity: config.Duration("BOOKING_GRANULARITY_MINUTES", 0, time.Minute),
			MaxDuration: config.Duration("BOOKING_MAX_DURATION_HOURS", 0, time.Hour),
			Location:    loc,
		}),
		booking.WithTxTimeout(config.Duration("BOOKING_TX_TIMEOUT_MS", 10000, time.Millisecond)),
		booking.WithPublisher(publisher),
		booking.WithIdempotency(database.NewRedisIdempotency(database.Redis, config.Duration("BOOKING_IDEMPOTENCY_TTL_HOURS", 24, time.Hour))),
		booking.WithLogger(logrus.StandardLogger()),
	)
	handler.SetBookingService(service)

	marker := helper.NewRedisMarker(database.Redis)
	helper.StartReminderScheduler(&helper.ReminderJob{
		Service:   service,
		Publisher: publisher,
		Mark:      marker,
		Lead:      config.Duration("BOOKING_REMINDER_LEAD_MINUTES", 15, time.Minute),
		Now:       time.Now,
	})
	defer helper.StopReminderScheduler()

	helper.StartOverdueScheduler(&helper.OverdueJob{
		Service:   service,
		Publisher: publisher,
		Mark:      marker,
		Now:       time.Now,
	}, loc)
	defer helper.StopOverdueScheduler()

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.Default("CORS_ORIGINS", "http://localhost:5173"),
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, Idempotency-Key",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           600,
	}))
	router.SetupRoutes(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logrus.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logrus.WithError(err).Error("server shutdown")
		}
	}()

	if err := app.Listen(":" + config.Default("APP_PORT", "8002")); err != nil {
		logrus.WithError(err).Error("server stopped")
	}
}
