package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Sweep execution
	Sweep SweepConfig

	// Market data
	MarketData MarketDataConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// SweepConfig controls the sweep scheduler
type SweepConfig struct {
	PoolWidth int    // 동시 배치 수 (기본: 4)
	BatchSize int    // 0 = 티커 수 기반 휴리스틱
	Store     string // postgres, memory
}

// MarketDataConfig selects and tunes the market-data provider
type MarketDataConfig struct {
	Provider   string // yahoo, naver
	BaseURL    string
	Timeout    time.Duration
	RatePerSec int
	CacheTTL   time.Duration
}

// Store kinds
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Provider kinds
const (
	ProviderYahoo = "yahoo"
	ProviderNaver = "naver"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Sweep: SweepConfig{
			PoolWidth: getEnvAsInt("SWEEP_POOL_WIDTH", 4),
			BatchSize: getEnvAsInt("SWEEP_BATCH_SIZE", 0),
			Store:     getEnv("SWEEP_STORE", StorePostgres),
		},

		MarketData: MarketDataConfig{
			Provider:   getEnv("MARKETDATA_PROVIDER", ProviderYahoo),
			BaseURL:    getEnv("MARKETDATA_BASE_URL", ""),
			Timeout:    getEnvAsDuration("MARKETDATA_TIMEOUT", "30s"),
			RatePerSec: getEnvAsInt("MARKETDATA_RATE_PER_SEC", 5),
			CacheTTL:   getEnvAsDuration("MARKETDATA_CACHE_TTL", "24h"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Sweep.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when SWEEP_STORE=%s", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("SWEEP_STORE must be one of: %s, %s", StorePostgres, StoreMemory)
	}

	if c.Sweep.PoolWidth < 1 {
		return fmt.Errorf("SWEEP_POOL_WIDTH must be >= 1, got %d", c.Sweep.PoolWidth)
	}
	if c.Sweep.BatchSize < 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be >= 0, got %d", c.Sweep.BatchSize)
	}

	if c.MarketData.Provider != ProviderYahoo && c.MarketData.Provider != ProviderNaver {
		return fmt.Errorf("MARKETDATA_PROVIDER must be one of: %s, %s", ProviderYahoo, ProviderNaver)
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
