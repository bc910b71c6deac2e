package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig — всё, что нужно процессу кроме БД.
type AppConfig struct {
	GRPCAddr        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	CounterWindow time.Duration
	BidCutoff     time.Duration
	SweepInterval time.Duration
	Retention     time.Duration

	// Координаты, от которых считается расстояние в выдаче. Без них — хеш.
	OriginLat *float64
	OriginLon *float64

	EventsBuffer     int
	EventsWebhookURL string
	EventsMongoURI   string
	EventsMongoDB    string

	// JSON со снапшотом каталога для первичного наполнения.
	SeedFile string
}

// LoadDotEnv подхватывает .env, если он есть. Переменные окружения важнее.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		GRPCAddr:         getEnv("GRPC_ADDR", ":9090"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:  getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second, time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CounterWindow:    getEnvDuration("COUNTER_WINDOW_SEC", 60*time.Second, time.Second),
		BidCutoff:        getEnvDuration("BID_CUTOFF_MIN", 30*time.Minute, time.Minute),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL_MS", 500*time.Millisecond, time.Millisecond),
		Retention:        getEnvDuration("NEGOTIATION_RETENTION_MIN", 10*time.Minute, time.Minute),
		EventsBuffer:     getEnvInt("EVENTS_BUFFER", 256),
		EventsWebhookURL: getEnv("EVENTS_WEBHOOK_URL", ""),
		EventsMongoURI:   getEnv("EVENTS_MONGO_URI", ""),
		EventsMongoDB:    getEnv("EVENTS_MONGO_DB", "openslots"),
		SeedFile:         getEnv("SEED_FILE", ""),
	}

	if _, ok := os.LookupEnv("ORIGIN_LAT"); ok {
		lat, lon := getEnvFloat("ORIGIN_LAT", 0), getEnvFloat("ORIGIN_LON", 0)
		cfg.OriginLat, cfg.OriginLon = &lat, &lon
	}

	var errs []error
	if cfg.CounterWindow <= 0 {
		errs = append(errs, errors.New("COUNTER_WINDOW_SEC must be positive"))
	}
	if cfg.BidCutoff <= 0 {
		errs = append(errs, errors.New("BID_CUTOFF_MIN must be positive"))
	}
	// истечение должно быть замечено не позже 2с после срока
	if cfg.SweepInterval <= 0 || cfg.SweepInterval > 2*time.Second {
		errs = append(errs, errors.New("SWEEP_INTERVAL_MS must be in (0, 2000]"))
	}
	if cfg.GRPCAddr == "" && cfg.HTTPAddr == "" {
		errs = append(errs, errors.New("at least one of GRPC_ADDR, HTTP_ADDR is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid app config: %w", err)
	}
	return cfg, nil
}
