package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabaseURL string

	// Kafka notification egress. Publishing is disabled when no brokers are
	// configured; alerts are still persisted.
	KafkaBrokers           []string
	KafkaNotificationTopic string
	NotificationsEnabled   bool

	// Provider endpoints and fetch behaviour.
	USGSBaseURL        string
	GDACSFeedURL       string
	OpenMeteoFloodURL  string
	OpenWeatherBaseURL string
	OpenWeatherAPIKey  string
	WeatherEnabled     bool
	ProviderTimeout    time.Duration

	// Pipeline tuning.
	SnapshotTTL       time.Duration
	RefreshInterval   time.Duration
	QuakeMinMagnitude float64
	WeatherCacheSize  int
	WeatherCacheTTL   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	providerTimeout, err := parseDuration("PROVIDER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := parseDuration("SNAPSHOT_TTL", "24h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}
	weatherCacheTTL, err := parseDuration("WEATHER_CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}

	minMag, err := parseFloat("QUAKE_MIN_MAGNITUDE", 4.0)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	weatherKey := os.Getenv("OPENWEATHER_API_KEY")
	weatherEnabled := weatherKey != ""
	if v := os.Getenv("WEATHER_ENABLED"); v != "" {
		weatherEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		KafkaBrokers:           brokers,
		KafkaNotificationTopic: sharedcfg.EnvOrDefault("KAFKA_NOTIFICATIONS_TOPIC", "hazard-notifications"),
		NotificationsEnabled:   len(brokers) > 0,

		USGSBaseURL:        sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/fdsnws/event/1/query"),
		GDACSFeedURL:       sharedcfg.EnvOrDefault("GDACS_FEED_URL", "https://www.gdacs.org/xml/rss.xml"),
		OpenMeteoFloodURL:  sharedcfg.EnvOrDefault("OPEN_METEO_FLOOD_URL", "https://flood-api.open-meteo.com/v1/flood"),
		OpenWeatherBaseURL: sharedcfg.EnvOrDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		OpenWeatherAPIKey:  weatherKey,
		WeatherEnabled:     weatherEnabled,
		ProviderTimeout:    providerTimeout,

		SnapshotTTL:       snapshotTTL,
		RefreshInterval:   refreshInterval,
		QuakeMinMagnitude: minMag,
		WeatherCacheSize:  parseIntOrDefault("WEATHER_CACHE_SIZE", 256),
		WeatherCacheTTL:   weatherCacheTTL,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.WeatherEnabled && cfg.OpenWeatherAPIKey == "" {
		return nil, errors.New("WEATHER_ENABLED is true but OPENWEATHER_API_KEY is not set")
	}
	if cfg.SnapshotTTL <= 0 {
		return nil, errors.New("SNAPSHOT_TTL must be positive")
	}

	return cfg, nil
}

func parseDuration(name, fallback string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(name, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return d, nil
}

func parseFloat(name string, fallback float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func parseIntOrDefault(name string, fallback int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
