// Package config centralizes environment-driven configuration for the server binary.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every tunable the API needs. Defaults favour local
// development; environment variables override for Docker/K8s.
type Config struct {
	HTTPAddress string
	Env         string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SessionSecret string
	SessionTTL    time.Duration

	// PermissionCacheTTL bounds how long a (tenant, role) permission set is
	// served from memory before re-reading the matrix.
	PermissionCacheTTL time.Duration

	// InstallmentDaysBeforeEvent is the lead time for the second installment
	// of the default 50/50 split when the event date is known.
	InstallmentDaysBeforeEvent int

	// ContractPrefix is the prefix of auto-generated contract numbers
	// (PREFIX-YEAR-00001).
	ContractPrefix string

	AutoMigrate bool
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddress:                getEnv("HTTP_ADDRESS", ":8080"),
		Env:                        getEnv("APP_ENV", "development"),
		PostgresHost:               getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:               getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:               getEnv("POSTGRES_USER", "festa"),
		PostgresPassword:           getEnv("POSTGRES_PASSWORD", "festa"),
		PostgresDB:                 getEnv("POSTGRES_DB", "festa_backoffice"),
		PostgresSSLMode:            getEnv("POSTGRES_SSLMODE", "disable"),
		SessionSecret:              os.Getenv("SESSION_SECRET"),
		PermissionCacheTTL:         getEnvAsDuration("PERMISSION_CACHE_TTL", 30*time.Second),
		InstallmentDaysBeforeEvent: getEnvAsInt("INSTALLMENT_DAYS_BEFORE_EVENT", 7),
		ContractPrefix:             getEnv("CONTRACT_PREFIX", "CT"),
		AutoMigrate:                getEnvAsBool("DB_AUTO_MIGRATE", true),
	}

	ttlHours := getEnvAsInt("SESSION_TTL_HOURS", 12)
	if ttlHours <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL_HOURS must be positive, got %d", ttlHours)
	}
	cfg.SessionTTL = time.Duration(ttlHours) * time.Hour

	if cfg.InstallmentDaysBeforeEvent < 0 {
		return Config{}, fmt.Errorf("config: INSTALLMENT_DAYS_BEFORE_EVENT must not be negative")
	}

	return cfg, nil
}

// PostgresDSN keeps the URL form compatible with GORM and migration tooling.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
