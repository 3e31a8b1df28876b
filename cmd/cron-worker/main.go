package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/smartpark-backend/internal/bookings"
	"github.com/angelmondragon/smartpark-backend/internal/cron"
	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/internal/parks"
	"github.com/angelmondragon/smartpark-backend/internal/realtime"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/instance"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
	"github.com/angelmondragon/smartpark-backend/pkg/migrate"
	"github.com/angelmondragon/smartpark-backend/pkg/redis"
	"github.com/angelmondragon/smartpark-backend/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	bookingService, err := newBookingService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:   logg,
		Bookings: bookingService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+cron.BookingExpiryJobName), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// newBookingService builds the booking service without a detector. Slot
// changes made by expiry still reach connected clients through redis.
func newBookingService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (bookings.Service, error) {
	sealer, err := security.NewSealer(cfg.Security)
	if err != nil {
		return nil, err
	}
	parkingMetrics := metrics.NewParkingMetrics(prometheus.DefaultRegisterer)
	publisher := realtime.NewRedisPublisher(redisClient, logg)

	machine, err := occupancy.NewMachine(occupancy.MachineParams{
		Repo:      occupancy.NewRepository(dbClient.DB()),
		Logs:      eventlog.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Publisher: publisher,
		Metrics:   parkingMetrics,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}
	parkService, err := parks.NewService(parks.ServiceParams{
		Repo:   parks.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Sealer: sealer,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}
	return bookings.NewService(bookings.ServiceParams{
		Repo:      bookings.NewRepository(dbClient.DB()),
		Machine:   machine,
		Parks:     parkService,
		Tx:        dbClient,
		Publisher: publisher,
		Metrics:   parkingMetrics,
		Logger:    logg,
	})
}
