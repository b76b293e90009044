package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-alert-service/internal/adapter/gdacs"
	httpadapter "github.com/couchcryptid/hazard-alert-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-alert-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-alert-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/hazard-alert-service/internal/adapter/openweather"
	"github.com/couchcryptid/hazard-alert-service/internal/adapter/usgs"
	"github.com/couchcryptid/hazard-alert-service/internal/alerting"
	"github.com/couchcryptid/hazard-alert-service/internal/config"
	"github.com/couchcryptid/hazard-alert-service/internal/domain"
	"github.com/couchcryptid/hazard-alert-service/internal/observability"
	"github.com/couchcryptid/hazard-alert-service/internal/scheduler"
	"github.com/couchcryptid/hazard-alert-service/internal/snapshot"
	"github.com/couchcryptid/hazard-alert-service/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Provider gateways.
	quakes := usgs.NewClient(cfg.USGSBaseURL, cfg.ProviderTimeout, metrics, logger)
	tsunamis := gdacs.NewClient(cfg.GDACSFeedURL, cfg.ProviderTimeout, metrics, logger)
	floods := openmeteo.NewClient(cfg.OpenMeteoFloodURL, cfg.ProviderTimeout, metrics, logger)

	// Weather is feature-flagged via OPENWEATHER_API_KEY / WEATHER_ENABLED.
	var weather alerting.WeatherGateway
	if cfg.WeatherEnabled {
		client := openweather.NewClient(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey, cfg.ProviderTimeout, metrics, logger)
		weather = openweather.NewCachedClient(client, cfg.WeatherCacheSize, cfg.WeatherCacheTTL,
			clockwork.NewRealClock(), metrics)
		logger.Info("weather tracking enabled", "cache_size", cfg.WeatherCacheSize, "cache_ttl", cfg.WeatherCacheTTL)
	} else {
		logger.Info("weather tracking disabled")
	}

	// Notification egress is feature-flagged via KAFKA_BROKERS.
	var publisher alerting.NotificationPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.NotificationsEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaNotificationTopic, metrics, logger)
		publisher = kafkaPublisher
		logger.Info("notification egress enabled", "topic", cfg.KafkaNotificationTopic)
	} else {
		logger.Info("notification egress disabled")
	}

	snapshots := snapshot.NewService(store.Snapshots, cfg.SnapshotTTL, metrics, logger)
	writer := alerting.NewWriter(store.Alerts, store.Notifications, publisher, metrics, logger)

	svc := alerting.NewService(alerting.Deps{
		Quakes:            quakes,
		Tsunamis:          tsunamis,
		Floods:            floods,
		Weather:           weather,
		Snapshots:         snapshots,
		Clusters:          store.Clusters,
		Alerts:            store.Alerts,
		FloodState:        store.FloodState,
		Subscribers:       store.Subscribers,
		Writer:            writer,
		QuakeMinMagnitude: cfg.QuakeMinMagnitude,
		FloodStateTTL:     cfg.SnapshotTTL,
		Metrics:           metrics,
		Logger:            logger,
	})

	sched := scheduler.New(clockwork.NewRealClock(), metrics, logger)
	sched.Add(scheduler.Job{
		Key:   "flood-refresh",
		Every: cfg.RefreshInterval,
		Run: func(ctx context.Context) error {
			_, err := svc.TriggerClusterRefresh(ctx, domain.FamilyFlood)
			return err
		},
	})
	if cfg.WeatherEnabled {
		sched.Add(scheduler.Job{
			Key:   "weather-refresh",
			Every: cfg.RefreshInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.TriggerClusterRefresh(ctx, domain.FamilyWeather)
				return err
			},
		})
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, readiness{store}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go sched.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readiness reports ready once the database answers a ping.
type readiness struct {
	store *postgres.Store
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	return r.store.Pool.Ping(ctx)
}
