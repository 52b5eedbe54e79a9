package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// DefaultOrgID is used when a request carries no organization header.
	DefaultOrgID int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	Network NetworkConfig
}

// NetworkConfig carries the referral-network policy knobs.
type NetworkConfig struct {
	// MissingParentPolicy decides what AddToNetwork does when the supplied
	// parent has no self-edge: "error" rejects the call, "adopt_root"
	// registers the member as a root instead.
	MissingParentPolicy string
	// EarningsAtomicity is "transactional" (all ancestor increments commit
	// together) or "best_effort" (independent per-edge increments with an
	// explicit partial-failure report).
	EarningsAtomicity string
	// MaxTreeDepth bounds getNetworkTree when the caller does not.
	MaxTreeDepth int
	// ConversionRate / ConversionBurst gate the earnings endpoints when
	// redis is configured.
	ConversionRate  float64
	ConversionBurst int
}

const (
	MissingParentError     = "error"
	MissingParentAdoptRoot = "adopt_root"

	EarningsTransactional = "transactional"
	EarningsBestEffort    = "best_effort"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "trm"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		DefaultOrgID:      getenvInt64("DEFAULT_ORG", 0),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "trm"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		Network: NetworkConfig{
			MissingParentPolicy: normalizeMissingParentPolicy(getenv("NETWORK_MISSING_PARENT_POLICY", MissingParentError)),
			EarningsAtomicity:   normalizeEarningsAtomicity(getenv("NETWORK_EARNINGS_ATOMICITY", EarningsTransactional)),
			MaxTreeDepth:        getenvInt("NETWORK_MAX_TREE_DEPTH", 3),
			ConversionRate:      getenvFloat("NETWORK_CONVERSION_RATE", 10),
			ConversionBurst:     getenvInt("NETWORK_CONVERSION_BURST", 20),
		},
	}

	return cfg
}

func normalizeMissingParentPolicy(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case MissingParentAdoptRoot:
		return MissingParentAdoptRoot
	default:
		return MissingParentError
	}
}

func normalizeEarningsAtomicity(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case EarningsBestEffort:
		return EarningsBestEffort
	default:
		return EarningsTransactional
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
