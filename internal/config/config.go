package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	LogLevel      slog.Level
	PostgresURL   string
	KafkaBrokers  []string
	RedisAddr     string
	RedisPassword string
	PublicBaseURL string
	AdminToken    string

	Storage   StorageConfig
	Telemetry TelemetryConfig

	Email struct {
		APIURL string
		APIKey string
		From   string
		Staff  string
	}
}

type StorageConfig struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	// Admin credentials sign long-lived download URLs. The upload
	// credentials are used when they are not set.
	AdminAccessKey string
	AdminSecretKey string
	SignedURLTTL   time.Duration
}

// TelemetryConfig points the trace exporter at an OTLP collector.
type TelemetryConfig struct {
	Endpoint    string
	Insecure    bool
	Environment string
	// SamplingRatio is the fraction of root traces kept, from 0 to 1.
	SamplingRatio float64
}

// Load reads configuration from the environment, seeding it from the .env
// file at path when one exists. defaultPort is used when PORT is unset.
func Load(path, defaultPort string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:          getenv("PORT", defaultPort),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "https://smartwaveuk.com"), "/"),
		AdminToken:    os.Getenv("ADMIN_TOKEN"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.Storage = StorageConfig{
		Endpoint:       os.Getenv("STORAGE_ENDPOINT"),
		Region:         getenv("STORAGE_REGION", "us-east-1"),
		Bucket:         getenv("STORAGE_BUCKET", "receipts"),
		AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
		UsePathStyle:   os.Getenv("STORAGE_USE_PATH_STYLE") == "true",
		AdminAccessKey: os.Getenv("STORAGE_ADMIN_ACCESS_KEY"),
		AdminSecretKey: os.Getenv("STORAGE_ADMIN_SECRET_KEY"),
		SignedURLTTL:   365 * 24 * time.Hour,
	}
	if ttl := os.Getenv("STORAGE_SIGNED_URL_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid STORAGE_SIGNED_URL_TTL: %w", err)
		}
		cfg.Storage.SignedURLTTL = d
	}

	cfg.Telemetry = TelemetryConfig{
		Endpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Insecure:      getenv("OTEL_EXPORTER_OTLP_INSECURE", "true") == "true",
		Environment:   getenv("DEPLOYMENT_ENVIRONMENT", "development"),
		SamplingRatio: 1.0,
	}
	if arg := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); arg != "" {
		ratio, err := strconv.ParseFloat(arg, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG %q: must be between 0 and 1", arg)
		}
		cfg.Telemetry.SamplingRatio = ratio
	}

	cfg.Email.APIURL = os.Getenv("EMAIL_API_URL")
	cfg.Email.APIKey = os.Getenv("EMAIL_API_KEY")
	cfg.Email.From = getenv("EMAIL_FROM", "SmartWave UK <orders@smartwaveuk.com>")
	cfg.Email.Staff = os.Getenv("STAFF_EMAIL")

	return cfg, nil
}

// Require returns an error naming every listed variable whose value is empty.
func (c *Config) Require(names ...string) error {
	values := map[string]string{
		"POSTGRES_URL":       c.PostgresURL,
		"REDIS_ADDR":         c.RedisAddr,
		"ADMIN_TOKEN":        c.AdminToken,
		"STORAGE_ACCESS_KEY": c.Storage.AccessKey,
		"STORAGE_SECRET_KEY": c.Storage.SecretKey,
		"EMAIL_API_URL":      c.Email.APIURL,
		"STAFF_EMAIL":        c.Email.Staff,
		"KAFKA_BROKERS":      strings.Join(c.KafkaBrokers, ","),
	}

	var missing []string
	for _, name := range names {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
