package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	BankData    BankDataConfig
	Sync        SyncConfig
	Scheduler   SchedulerConfig
	Institution InstitutionConfig
	Firebase    FirebaseConfig
	Telemetry   TelemetryConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BankDataConfig struct {
	BaseURL string
	Token   string
}

type SyncConfig struct {
	HistoryDays int
	Workers     int
	MaxAttempts int
	JobTimeout  time.Duration
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	RunOnStartup  bool
}

type InstitutionConfig struct {
	CacheMaxAgeDays int
}

type FirebaseConfig struct {
	CredentialsFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

func Load() (*Config, error) {

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	historyDays, err := strconv.Atoi(getEnv("SYNC_HISTORY_DAYS", "90"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_HISTORY_DAYS: %w", err)
	}
	syncWorkers, err := strconv.Atoi(getEnv("SYNC_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_WORKERS: %w", err)
	}
	maxAttempts, err := strconv.Atoi(getEnv("SYNC_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_MAX_ATTEMPTS: %w", err)
	}
	jobTimeout, err := time.ParseDuration(getEnv("SYNC_JOB_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_JOB_TIMEOUT: %w", err)
	}

	cacheMaxAge, err := strconv.Atoi(getEnv("INSTITUTION_CACHE_MAX_AGE_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid INSTITUTION_CACHE_MAX_AGE_DAYS: %w", err)
	}

	schedulerTimes := strings.Split(getEnv("SCHEDULER_TIMES", "05:00,10:00,14:00,20:00"), ",")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "nestegg"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "nestegg"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		BankData: BankDataConfig{
			BaseURL: getEnv("BANKDATA_BASE_URL", ""),
			Token:   getEnv("BANKDATA_TOKEN", ""),
		},
		Sync: SyncConfig{
			HistoryDays: historyDays,
			Workers:     syncWorkers,
			MaxAttempts: maxAttempts,
			JobTimeout:  jobTimeout,
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: schedulerTimes,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Institution: InstitutionConfig{
			CacheMaxAgeDays: cacheMaxAge,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "nestegg-api"),
			Environment:  getEnv("APP_ENV", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9090"),
		},
	}

	// Validate required fields
	if cfg.BankData.Token == "" {
		return nil, fmt.Errorf("BANKDATA_TOKEN is required")
	}
	if cfg.Sync.HistoryDays <= 0 {
		return nil, fmt.Errorf("SYNC_HISTORY_DAYS must be positive")
	}
	if cfg.Institution.CacheMaxAgeDays <= 0 {
		return nil, fmt.Errorf("INSTITUTION_CACHE_MAX_AGE_DAYS must be positive")
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
