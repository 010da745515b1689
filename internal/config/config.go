package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/inspection-dispatch/internal/models"
)

// DriverConfig captures all tunable parameters for the driver agent.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type DriverConfig struct {
	GatewayWSURL string
	APIBaseURL   string
	AuthToken    string
	UserID       string
	Role         string

	RadiusKm        float64
	RefreshInterval time.Duration
	WatchCadence    time.Duration
	PresencePath    string

	MetricsAddr string
	LogLevel    string
}

func defaultDriverConfig() DriverConfig {
	return DriverConfig{
		GatewayWSURL:    "ws://localhost:8080/ws",
		APIBaseURL:      "http://localhost:8080",
		Role:            "driver",
		RadiusKm:        20,
		RefreshInterval: 30 * time.Second,
		WatchCadence:    5 * time.Second,
		PresencePath:    "presence.json",
		MetricsAddr:     ":2113",
		LogLevel:        "info",
	}
}

func LoadDriverConfig() (DriverConfig, error) {
	cfg := defaultDriverConfig()
	var errs []error

	setStringFromEnv(&cfg.GatewayWSURL, "GATEWAY_WS_URL")
	setStringFromEnv(&cfg.APIBaseURL, "API_BASE_URL")
	setStringFromEnv(&cfg.AuthToken, "AUTH_TOKEN")
	setStringFromEnv(&cfg.UserID, "USER_ID")
	setStringFromEnv(&cfg.Role, "USER_ROLE")

	setFloatFromEnv(&cfg.RadiusKm, "DISPATCH_RADIUS_KM", &errs)
	setDurationFromEnv(&cfg.RefreshInterval, "OFFER_REFRESH_INTERVAL", &errs)
	setDurationFromEnv(&cfg.WatchCadence, "WATCH_CADENCE", &errs)
	setStringFromEnv(&cfg.PresencePath, "PRESENCE_PATH")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_RADIUS_KM must be > 0"))
	}
	if cfg.UserID == "" {
		errs = append(errs, fmt.Errorf("USER_ID is required"))
	}
	if cfg.AuthToken == "" {
		errs = append(errs, fmt.Errorf("AUTH_TOKEN is required"))
	}
	switch models.Role(cfg.Role) {
	case models.RoleClient, models.RoleDriver, models.RoleAdmin:
	default:
		errs = append(errs, fmt.Errorf("USER_ROLE must be client, driver or admin, got %q", cfg.Role))
	}

	return cfg, errors.Join(errs...)
}

// GatewayConfig captures all tunable parameters for the realtime gateway.
type GatewayConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	JWTSecret string

	LogLevel string
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		KafkaTopic:      "driver-locations",
		LogLevel:        "info",
	}
}

func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
