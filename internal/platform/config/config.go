package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Crime sources selectable with CRIME_SOURCE.
const (
	CrimeSourceFirestore = "firestore"
	CrimeSourcePostgres  = "postgres"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	Timezone string

	FirebaseProjectID   string
	FirebaseCredsBase64 string
	FirebaseCredsFile   string
	FirestoreEmulator   string

	CrimeSource string
	DatabaseURL string

	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	AnalyticsCacheTTL time.Duration

	JWTSecret      string
	AuthDisabled   bool
	AllowedOrigins string

	ClusterRefreshCron string
	ClusterMigrateCron string
}

// Load reads environment variables into a Config with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "release"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Timezone:            getEnv("TIMEZONE", "Asia/Jakarta"),
		FirebaseProjectID:   strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		FirebaseCredsBase64: strings.TrimSpace(os.Getenv("FIREBASE_CREDS_BASE64")),
		FirebaseCredsFile:   strings.TrimSpace(os.Getenv("FIREBASE_CREDS_FILE")),
		FirestoreEmulator:   strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST")),
		CrimeSource:         strings.ToLower(getEnv("CRIME_SOURCE", CrimeSourceFirestore)),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddress:        strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AllowedOrigins:      strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")),
		ClusterRefreshCron:  getEnv("CLUSTER_REFRESH_CRON", "*/10 * * * *"),
		ClusterMigrateCron:  getEnv("CLUSTER_MIGRATE_CRON", "0 1 1 * *"),
	}

	db, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	cfg.RedisDB = db

	ttl, err := parseDurationEnv("ANALYTICS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse ANALYTICS_CACHE_TTL: %w", err)
	}
	cfg.AnalyticsCacheTTL = ttl

	disabled, err := parseBoolEnv("AUTH_DISABLED", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse AUTH_DISABLED: %w", err)
	}
	cfg.AuthDisabled = disabled

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures required fields are present and consistent.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.FirebaseCredsBase64 == "" && c.FirebaseCredsFile == "" && c.FirestoreEmulator == "" {
		return errors.New("provide FIREBASE_CREDS_BASE64 or FIREBASE_CREDS_FILE for Firestore auth")
	}
	switch c.CrimeSource {
	case CrimeSourceFirestore:
	case CrimeSourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when CRIME_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unknown CRIME_SOURCE %q", c.CrimeSource)
	}
	if c.JWTSecret == "" && !c.AuthDisabled {
		return errors.New("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the time zone used for calendar-day and month boundaries.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Origins returns the configured CORS origins.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FirebaseCredentialsJSON returns the service account JSON bytes and the source used.
func (c Config) FirebaseCredentialsJSON() ([]byte, string, error) {
	if c.FirebaseCredsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.FirebaseCredsBase64)
		if err != nil {
			return nil, "base64", fmt.Errorf("decode FIREBASE_CREDS_BASE64: %w", err)
		}
		return decoded, "base64", nil
	}
	if c.FirebaseCredsFile != "" {
		data, err := os.ReadFile(c.FirebaseCredsFile)
		if err != nil {
			return nil, "file", fmt.Errorf("read FIREBASE_CREDS_FILE: %w", err)
		}
		return data, "file", nil
	}
	return nil, "", errors.New("no firebase credentials found")
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func parseBoolEnv(key string, defaultVal bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(val)
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
