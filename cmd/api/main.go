package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/smartpark-backend/api/routes"
	"github.com/angelmondragon/smartpark-backend/internal/bookings"
	"github.com/angelmondragon/smartpark-backend/internal/dashboard"
	"github.com/angelmondragon/smartpark-backend/internal/detector"
	"github.com/angelmondragon/smartpark-backend/internal/eventlog"
	"github.com/angelmondragon/smartpark-backend/internal/occupancy"
	"github.com/angelmondragon/smartpark-backend/internal/parks"
	"github.com/angelmondragon/smartpark-backend/internal/realtime"
	"github.com/angelmondragon/smartpark-backend/internal/users"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
	"github.com/angelmondragon/smartpark-backend/pkg/db"
	"github.com/angelmondragon/smartpark-backend/pkg/instance"
	"github.com/angelmondragon/smartpark-backend/pkg/logger"
	"github.com/angelmondragon/smartpark-backend/pkg/metrics"
	"github.com/angelmondragon/smartpark-backend/pkg/migrate"
	"github.com/angelmondragon/smartpark-backend/pkg/redis"
	"github.com/angelmondragon/smartpark-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	parkingMetrics := metrics.NewParkingMetrics(reg)

	sealer, err := security.NewSealer(cfg.Security)
	if err != nil {
		return err
	}

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
		return err
	}

	var detection parks.DetectorControl
	var supervisor *detector.Supervisor
	var supervisorDone <-chan error
	supervisorCtx, stopSupervisor := context.WithCancel(ctx)
	defer stopSupervisor()
	if cfg.Detector.Enabled {
		supervisor, err = detector.NewSupervisor(detector.SupervisorParams{
			Config:   cfg.Detector,
			Factory:  detector.MockFactory(uint64(time.Now().UnixNano())),
			Reporter: machine,
			Logger:   logg,
			Metrics:  parkingMetrics,
		})
		if err != nil {
			return err
		}
		supervisorDone = supervisor.ServeBackground(supervisorCtx)
		detection = supervisor
	}

	parkService, err := parks.NewService(parks.ServiceParams{
		Repo:     parks.NewRepository(dbClient.DB()),
		Tx:       dbClient,
		Detector: detection,
		Sealer:   sealer,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	if supervisor != nil {
		restored, err := parkService.RestoreDetection(ctx)
		if err != nil {
			logg.Error(ctx, "detector.restore.failed", err)
		}
		logg.Info(logg.WithField(ctx, "parks", restored), "detector.restored")
	}

	userService, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Auth.UserCacheTTL, logg)
	if err != nil {
		return err
	}
	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:      bookings.NewRepository(dbClient.DB()),
		Machine:   machine,
		Parks:     parkService,
		Tx:        dbClient,
		Publisher: publisher,
		Metrics:   parkingMetrics,
		Logger:    logg,
	})
	if err != nil {
		return err
	}
	manualService, err := occupancy.NewManualService(machine, parkService)
	if err != nil {
		return err
	}
	dashboardService, err := dashboard.NewService(dashboard.NewRepository(dbClient.DB()), parkService, nil)
	if err != nil {
		return err
	}
	eventlogService, err := eventlog.NewService(eventlog.NewRepository(dbClient.DB()), parkService)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(logg, parkingMetrics)
	relay := realtime.NewRedisRelay(redisClient, hub, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Throttle:    redisClient,
			Users:       userService,
			Parks:       parkService,
			Bookings:    bookingService,
			Slots:       manualService,
			Dashboard:   dashboardService,
			EventLog:    eventlogService,
			Hub:         hub,
			Gatherer:    reg,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if supervisorDone != nil {
		g.Go(func() error {
			select {
			case err := <-supervisorDone:
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			case <-gctx.Done():
				stopSupervisor()
				<-supervisorDone
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "api server stopped")
	return nil
}
