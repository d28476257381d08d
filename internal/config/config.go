package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера (status API, read-only)
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	JWTSecret      string
	EncryptionKey  string
	SessionTimeout int
}

// ExchangeConfig selects which signed header family the engine's exchange
// Factory builds clients for, and the HTTP/clock-skew tuning shared by
// both families (spec §4.1, §5).
type ExchangeConfig struct {
	Family         string // "ch" or "xt"
	BaseURL        string
	HTTPTimeout    time.Duration
	MaxClockRetries int
}

// EngineConfig holds the scheduler's per-kind tick intervals and the
// bounded shutdown grace period (spec §4.4, §5).
type EngineConfig struct {
	ConditionalInterval time.Duration
	StabilizerInterval  time.Duration
	MarketMakerInterval time.Duration
	BuyWallInterval     time.Duration
	PriceGapInterval    time.Duration
	LiquidityInterval   time.Duration

	RingLogCapacity  int
	ShutdownGrace    time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "arbitrage"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			SessionTimeout: getEnvAsInt("SESSION_TIMEOUT", 3600),
		},
		Exchange: ExchangeConfig{
			Family:          getEnv("EXCHANGE_FAMILY", "ch"),
			BaseURL:         getEnv("EXCHANGE_BASE_URL", ""),
			HTTPTimeout:     getEnvAsDuration("EXCHANGE_HTTP_TIMEOUT", 10*time.Second),
			MaxClockRetries: getEnvAsInt("EXCHANGE_MAX_CLOCK_RETRIES", 3),
		},
		Engine: EngineConfig{
			// Per-kind polling cadence (spec §5: conditional 100s, the rest
			// 3-30s depending on how reactive the strategy needs to be).
			ConditionalInterval: getEnvAsDuration("TICK_CONDITIONAL", 100*time.Second),
			StabilizerInterval:  getEnvAsDuration("TICK_STABILIZER", 10*time.Second),
			MarketMakerInterval: getEnvAsDuration("TICK_MARKET_MAKER", 15*time.Second),
			BuyWallInterval:     getEnvAsDuration("TICK_BUY_WALL", 5*time.Second),
			PriceGapInterval:    getEnvAsDuration("TICK_PRICE_GAP", 10*time.Second),
			LiquidityInterval:   getEnvAsDuration("TICK_LIQUIDITY", 30*time.Second),

			RingLogCapacity: getEnvAsInt("RINGLOG_CAPACITY", 1000),
			ShutdownGrace:   getEnvAsDuration("SHUTDOWN_GRACE", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров
	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting API keys")
	}

	if len(cfg.Security.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return cfg, nil
}

// Вспомогательные функции для чтения переменных окружения

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
