package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"rental/internal/app"
	"rental/internal/client"
	"rental/internal/config"
	"rental/internal/handler"
	"rental/internal/logger"
	internalNats "rental/internal/nats"
	internalRedis "rental/internal/redis"
	"rental/internal/repository/postgres"
	"rental/internal/service"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic goes first so the database and Redis clients can be
	// instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	nc, err := app.NewNATSConn(cfg.NATS, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to nats")
	}
	defer nc.Drain()
	log.Info("connected to NATS")

	server, checker := wireServer(db, redisClient, nc, nrApp, cfg, log)

	runCtx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if cfg.Monitoring.PhotoCheckEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			checker.Run(runCtx)
		}()
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	stop()
	wg.Wait()

	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server together
// with the return photo checker.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nc *nats.Conn,
	nrApp *newrelic.Application,
	cfg *config.Config,
	log logrus.FieldLogger,
) (*http.Server, *service.PhotoChecker) {
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	rideRepo := postgres.NewRideRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	logRepo := postgres.NewMonitoringLogRepository(db)

	endpoint := func(e config.ServiceEndpoint) client.Config {
		return client.Config{BaseURL: e.URL, APIKey: e.APIKey, Timeout: cfg.Clients.Timeout}
	}

	devices := client.NewDeviceClient(endpoint(cfg.Clients.Device), log)
	insurance := client.NewInsuranceClient(endpoint(cfg.Clients.Insurance), log)
	discounts := client.NewDiscountClient(endpoint(cfg.Clients.Discount), log)
	locations := client.NewLocationClient(endpoint(cfg.Clients.Location), log)
	equipment := client.NewEquipmentClient(endpoint(cfg.Clients.Equipment), log)
	platforms := client.NewPlatformClient(endpoint(cfg.Clients.Platform), log)
	messages := client.NewMessageGatewayClient(client.MessageGatewayConfig{
		Config:          client.Config{BaseURL: cfg.Clients.MessageGateway.URL, Timeout: cfg.Clients.Timeout},
		AccessKeyID:     cfg.Clients.MessageGateway.AccessKeyID,
		SecretAccessKey: cfg.Clients.MessageGateway.SecretAccessKey,
	}, log)

	publisher := internalNats.NewWebhookPublisher(nc)

	pricingService := service.NewPricingService(locations, discounts)
	paymentService := service.NewPaymentService(paymentRepo, rideRepo, publisher, insurance, log)
	monitoringService := service.NewMonitoringService(logRepo, rideRepo, paymentService, messages, log)
	rideService := service.NewRideService(
		rideRepo,
		devices,
		insurance,
		discounts,
		equipment,
		publisher,
		internalRedis.NewLocker(lockStore),
		pricingService,
		paymentService,
		monitoringService,
		service.RideConfig{
			MaxStartDistance:  cfg.Rides.MaxStartDistance,
			AllowDebugBypass:  cfg.Rides.AllowDebugBypass,
			PhotoUploadWindow: cfg.Rides.PhotoUploadWindow,
			LockTTL:           cfg.Rides.LockTTL,
			CallTimeout:       cfg.Clients.Timeout,
		},
		log,
	)

	checker := service.NewPhotoChecker(
		rideRepo,
		monitoringService,
		cfg.Monitoring.PhotoCheckInterval,
		cfg.Monitoring.PhotoGracePeriod,
		log,
	)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:       handler.NewRideHandler(rideService, platforms),
		PaymentHandler:    handler.NewPaymentHandler(paymentService, rideService),
		PricingHandler:    handler.NewPricingHandler(pricingService),
		MonitoringHandler: handler.NewMonitoringHandler(monitoringService, rideService),
		WebhookHandler:    handler.NewWebhookHandler(rideService),
		Authenticator:     client.NewCachedPlatformAuthenticator(platforms, cacheStore, log),
		InternalAPIKey:    cfg.Auth.InternalAPIKey,
		RedisClient:       redisClient,
		NewRelicApp:       nrApp,
		Logger:            log,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, checker
}
