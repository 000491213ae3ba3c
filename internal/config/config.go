package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the service's full runtime configuration, sourced from flags
// with environment variables taking precedence (LoadEnvVars runs after
// ParseFlags so env always wins, matching the teacher's override order).
type Config struct {
	Port        string
	RedisURL    string
	PostgresURL string
	LogLevel    string

	KafkaBrokers     []string
	OrdersTopic      string
	ConsumerGroupID  string
	PartitionCount   int

	BucketCapacity float64
	RefillRate     float64

	PayWindow     time.Duration
	ReaperPeriod  time.Duration
	MaxRetry      int
	BatchSize     int
	FlushInterval time.Duration

	RiskThresholdLow  float64
	RiskThresholdHigh float64

	UserPurchaseLimit int64
}

// NewConfig creates a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Port:              "",
		RedisURL:          "",
		PostgresURL:       "",
		LogLevel:          "info",
		KafkaBrokers:      []string{"localhost:9092"},
		OrdersTopic:       "orders",
		ConsumerGroupID:   "flashsale-order-consumer",
		PartitionCount:    8,
		BucketCapacity:    50,
		RefillRate:        10,
		PayWindow:         15 * time.Minute,
		ReaperPeriod:      time.Minute,
		MaxRetry:          3,
		BatchSize:         100,
		FlushInterval:     5 * time.Second,
		RiskThresholdLow:  40,
		RiskThresholdHigh: 75,
		UserPurchaseLimit: 10,
	}
}

// ParseFlags parses the flags and sets the config
func (c *Config) ParseFlags() {
	// Build-in flags
	flag.StringVar(&c.Port, "port", "8080", "Port to listen on")
	flag.StringVar(&c.RedisURL, "redis-url", "localhost:6379", "Redis URL")
	flag.StringVar(&c.PostgresURL, "postgres-url", "postgres://localhost:5432/flash_sale?sslmode=disable", "Postgres URL")
	flag.StringVar(&c.LogLevel, "log-level", "info", "Log level")

	kafkaBrokers := flag.String("kafka-brokers", "localhost:9092", "Comma-separated durable-log broker addresses")
	flag.StringVar(&c.OrdersTopic, "orders-topic", "orders", "Durable log topic for order handoffs")
	flag.StringVar(&c.ConsumerGroupID, "consumer-group", "flashsale-order-consumer", "Consumer group id for C7 workers")
	flag.IntVar(&c.PartitionCount, "partition-count", 8, "Number of partitions on the orders topic")

	flag.Float64Var(&c.BucketCapacity, "bucket-capacity", 50, "Default token-bucket capacity per sku")
	flag.Float64Var(&c.RefillRate, "refill-rate", 10, "Default token-bucket refill rate (tokens/sec) per sku")

	payWindow := flag.Int("pay-window-seconds", 900, "Seconds a PENDING_PAYMENT order has before the reaper times it out")
	reaperPeriod := flag.Int("reaper-period-seconds", 60, "Seconds between timeout-reaper scans")
	flag.IntVar(&c.MaxRetry, "max-retry", 3, "Max insert retries before dead-lettering; not read by the order consumer, which dead-letters after a fixed 3 failed attempts")
	flag.IntVar(&c.BatchSize, "batch-size", 100, "Max buffered audit-ledger entries before a flush; the order consumer flushes at a fixed 100 orders")
	flushInterval := flag.Int("flush-interval-ms", 5000, "Milliseconds between periodic audit-ledger flushes; the order consumer flushes every 5 seconds")

	flag.Float64Var(&c.RiskThresholdLow, "risk-threshold-low", 40, "Score below which a request is LOW risk")
	flag.Float64Var(&c.RiskThresholdHigh, "risk-threshold-high", 75, "Score at/above which a request is HIGH risk")

	userLimit := flag.Int64("user-purchase-limit", 10, "Max units a single user may buy in one activity")

	// Parse flags
	flag.Parse()

	c.PayWindow = time.Duration(*payWindow) * time.Second
	c.ReaperPeriod = time.Duration(*reaperPeriod) * time.Second
	c.FlushInterval = time.Duration(*flushInterval) * time.Millisecond
	c.KafkaBrokers = splitCSV(*kafkaBrokers)
	c.UserPurchaseLimit = *userLimit

	// Environment variables (overrides build-in flags)
	c.LoadEnvVars()
}

// LoadEnvVars loads the environment variables and sets the config
func (c *Config) LoadEnvVars() {
	if v, ok := lookupNonEmpty("PORT"); ok {
		c.Port = v
	}
	if v, ok := lookupNonEmpty("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookupNonEmpty("REDIS_URL"); ok {
		c.RedisURL = v
	}
	if v, ok := lookupNonEmpty("POSTGRES_URL"); ok {
		c.PostgresURL = v
	}
	if v, ok := lookupNonEmpty("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = splitCSV(v)
	}
	if v, ok := lookupNonEmpty("ORDERS_TOPIC"); ok {
		c.OrdersTopic = v
	}
	if v, ok := lookupNonEmpty("CONSUMER_GROUP"); ok {
		c.ConsumerGroupID = v
	}
	if v, ok := lookupNonEmpty("PARTITION_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.PartitionCount = n
		}
	}
	if v, ok := lookupNonEmpty("BUCKET_CAPACITY"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.BucketCapacity = f
		}
	}
	if v, ok := lookupNonEmpty("REFILL_RATE"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RefillRate = f
		}
	}
	if v, ok := lookupNonEmpty("PAY_WINDOW_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.PayWindow = time.Duration(n) * time.Second
		}
	}
	if v, ok := lookupNonEmpty("MAX_RETRY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetry = n
		}
	}
	if v, ok := lookupNonEmpty("RISK_THRESHOLD_LOW"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RiskThresholdLow = f
		}
	}
	if v, ok := lookupNonEmpty("RISK_THRESHOLD_HIGH"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RiskThresholdHigh = f
		}
	}
	if v, ok := lookupNonEmpty("USER_PURCHASE_LIMIT"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.UserPurchaseLimit = n
		}
	}
}

func lookupNonEmpty(key string) (string, bool) {
	v, found := os.LookupEnv(key)
	if !found || v == "" {
		return "", false
	}
	return v, true
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// GetPort returns the current configuration
func (c *Config) GetPort() string {
	return c.Port
}

// GetRedisURL returns the current configuration
func (c *Config) GetRedisURL() string {
	return c.RedisURL
}

// GetPostgresURL returns the current configuration
func (c *Config) GetPostgresURL() string {
	return c.PostgresURL
}

// GetLogLevel returns the current configuration
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
