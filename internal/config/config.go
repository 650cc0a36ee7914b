package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig aggregates runtime configuration. Everything is injected through
// environment variables so deployments never patch code for a setting.
type AppConfig struct {
	HTTPAddr string

	// DBDriver selects the gorm dialector: "sqlite" for dev boxes,
	// "mysql" when real row locks across instances are needed.
	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int

	// Kafka cluster (comma separated) plus the topics of the event log.
	KafkaBrokers  []string
	SaleTopic     string
	ProductTopics ProductTopics
	ConsumerGroup string

	JWTSecret string

	// Sale endpoint rate limiting and the stock read cache.
	SaleRateLimit  int
	SaleRateWindow time.Duration
	StockCacheTTL  time.Duration

	// Batch training knobs.
	MinTrainSales   int
	TrainAheadWeeks int
	TrainBudget     time.Duration
	TrainLockTTL    time.Duration

	// Outbox sweep interval for sales whose event publish never got acked.
	OutboxInterval time.Duration

	DefaultHorizonDays int
}

// ProductTopics names one topic per product lifecycle event.
type ProductTopics struct {
	Created string
	Updated string
	Deleted string
}

// Load reads and validates configuration, falling back to defaults.
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "forecasting.db"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   0,

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		SaleTopic:    getEnv("KAFKA_SALE_TOPIC", "sale.created"),
		ProductTopics: ProductTopics{
			Created: getEnv("KAFKA_PRODUCT_CREATED_TOPIC", "product.created"),
			Updated: getEnv("KAFKA_PRODUCT_UPDATED_TOPIC", "product.updated"),
			Deleted: getEnv("KAFKA_PRODUCT_DELETED_TOPIC", "product.deleted"),
		},
		ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "forecast-group"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret"),

		SaleRateLimit:  100,
		SaleRateWindow: time.Second,
		StockCacheTTL:  24 * time.Hour,

		MinTrainSales:   4,
		TrainAheadWeeks: 4,
		TrainBudget:     10 * time.Minute,
		TrainLockTTL:    15 * time.Minute,

		OutboxInterval: 30 * time.Second,

		DefaultHorizonDays: 7,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	rateLimit, err := getEnvInt("SALE_RATE_LIMIT", cfg.SaleRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SALE_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("SALE_RATE_LIMIT must be > 0")
	}
	cfg.SaleRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("SALE_RATE_WINDOW_SEC", int(cfg.SaleRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid SALE_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("SALE_RATE_WINDOW_SEC must be > 0")
	}
	cfg.SaleRateWindow = time.Duration(rateWindowSec) * time.Second

	stockTTLHour, err := getEnvInt("STOCK_CACHE_TTL_HOUR", int(cfg.StockCacheTTL.Hours()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid STOCK_CACHE_TTL_HOUR: %w", err)
	}
	if stockTTLHour <= 0 {
		return AppConfig{}, fmt.Errorf("STOCK_CACHE_TTL_HOUR must be > 0")
	}
	cfg.StockCacheTTL = time.Duration(stockTTLHour) * time.Hour

	minSales, err := getEnvInt("MIN_TRAIN_SALES", cfg.MinTrainSales)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid MIN_TRAIN_SALES: %w", err)
	}
	if minSales < 2 {
		return AppConfig{}, fmt.Errorf("MIN_TRAIN_SALES must be >= 2")
	}
	cfg.MinTrainSales = minSales

	aheadWeeks, err := getEnvInt("TRAIN_AHEAD_WEEKS", cfg.TrainAheadWeeks)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid TRAIN_AHEAD_WEEKS: %w", err)
	}
	if aheadWeeks <= 0 {
		return AppConfig{}, fmt.Errorf("TRAIN_AHEAD_WEEKS must be > 0")
	}
	cfg.TrainAheadWeeks = aheadWeeks

	budgetMin, err := getEnvInt("TRAIN_BUDGET_MIN", int(cfg.TrainBudget.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid TRAIN_BUDGET_MIN: %w", err)
	}
	if budgetMin <= 0 {
		return AppConfig{}, fmt.Errorf("TRAIN_BUDGET_MIN must be > 0")
	}
	cfg.TrainBudget = time.Duration(budgetMin) * time.Minute

	lockTTLMin, err := getEnvInt("TRAIN_LOCK_TTL_MIN", int(cfg.TrainLockTTL.Minutes()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid TRAIN_LOCK_TTL_MIN: %w", err)
	}
	if lockTTLMin <= 0 {
		return AppConfig{}, fmt.Errorf("TRAIN_LOCK_TTL_MIN must be > 0")
	}
	cfg.TrainLockTTL = time.Duration(lockTTLMin) * time.Minute

	outboxSec, err := getEnvInt("OUTBOX_INTERVAL_SEC", int(cfg.OutboxInterval.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid OUTBOX_INTERVAL_SEC: %w", err)
	}
	if outboxSec <= 0 {
		return AppConfig{}, fmt.Errorf("OUTBOX_INTERVAL_SEC must be > 0")
	}
	cfg.OutboxInterval = time.Duration(outboxSec) * time.Second

	horizon, err := getEnvInt("DEFAULT_HORIZON_DAYS", cfg.DefaultHorizonDays)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid DEFAULT_HORIZON_DAYS: %w", err)
	}
	if horizon <= 0 {
		return AppConfig{}, fmt.Errorf("DEFAULT_HORIZON_DAYS must be > 0")
	}
	cfg.DefaultHorizonDays = horizon

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "mysql" {
		return AppConfig{}, fmt.Errorf("DB_DRIVER must be sqlite or mysql, got %q", cfg.DBDriver)
	}
	if cfg.DBDSN == "" {
		return AppConfig{}, fmt.Errorf("DB_DSN must not be empty")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.SaleTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_SALE_TOPIC must not be empty")
	}
	if cfg.ConsumerGroup == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_CONSUMER_GROUP must not be empty")
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}

	return cfg, nil
}

// SQLiteDSN appends the busy-timeout and immediate-transaction pragmas the
// concurrent sale path needs: without them simultaneous writers surface
// SQLITE_BUSY or deadlock on lock upgrade instead of serializing.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_txlock=immediate"
}

// getEnv reads a string env var, returning fallback when unset or blank.
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt reads an integer env var, returning fallback when unset.
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV parses a comma separated string into a slice.
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
