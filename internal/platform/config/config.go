package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Absent optional backends (Postgres, Redis, Kafka) fall back to
// in-memory implementations.
type Config struct {
	Addr string

	// DatabaseURL enables the Postgres-backed stores when set.
	DatabaseURL string
	// RedisURL enables the Redis-backed scan window when set.
	RedisURL string
	// KafkaBrokers enables the Kafka alert publisher when non-empty
	// (comma-separated broker list).
	KafkaBrokers string
	KafkaTopic   string

	// JWTSigningKey verifies bearer tokens minted by the identity service.
	JWTSigningKey string

	Signing      SigningConfig
	Verification VerificationConfig
}

// SigningConfig configures the software signing backend. MasterKey is the
// secret all versioned signing keys derive from; a real HSM deployment
// replaces the whole backend rather than this config.
type SigningConfig struct {
	MasterKey  string
	KeyVersion int
}

// VerificationConfig holds the anomaly detector thresholds.
type VerificationConfig struct {
	// DuplicateScanLimit is the number of valid scans of one serial tolerated
	// inside DuplicateScanWindow before a duplicate-scan warning fires.
	DuplicateScanLimit  int
	DuplicateScanWindow time.Duration
	// MinTimeBetweenScans bounds the look-back for the distance-time
	// collision check.
	MinTimeBetweenScans time.Duration
	// MaxDistanceKm is the farthest two scans of the same serial may be apart
	// inside MinTimeBetweenScans before the collision alert fires.
	MaxDistanceKm float64
	// LookupTimeout bounds external unit/batch/recall lookups.
	LookupTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("PHARMATRACE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:    envOr("KAFKA_ALERT_TOPIC", "pharmatrace.alerts"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Signing: SigningConfig{
			MasterKey:  envOr("SIGNING_MASTER_KEY", "dev-signing-key-change-in-production"),
			KeyVersion: 1,
		},
		Verification: VerificationConfig{
			DuplicateScanLimit:  3,
			DuplicateScanWindow: time.Hour,
			MinTimeBetweenScans: 30 * time.Minute,
			MaxDistanceKm:       500,
			LookupTimeout:       5 * time.Second,
		},
	}

	var err error
	if cfg.Signing.KeyVersion, err = envIntOr("SIGNING_KEY_VERSION", cfg.Signing.KeyVersion); err != nil {
		return Config{}, err
	}
	if cfg.Verification.DuplicateScanLimit, err = envIntOr("DUPLICATE_SCAN_LIMIT", cfg.Verification.DuplicateScanLimit); err != nil {
		return Config{}, err
	}
	if cfg.Verification.MaxDistanceKm, err = envFloatOr("MAX_SCAN_DISTANCE_KM", cfg.Verification.MaxDistanceKm); err != nil {
		return Config{}, err
	}
	if minutes, err := envIntOr("MIN_TIME_BETWEEN_SCANS_MINUTES", int(cfg.Verification.MinTimeBetweenScans.Minutes())); err != nil {
		return Config{}, err
	} else {
		cfg.Verification.MinTimeBetweenScans = time.Duration(minutes) * time.Minute
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envFloatOr(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}
