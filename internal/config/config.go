package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env         string // "local", "dev", "prod"
	ServiceName string
	LogLevel    string
	Port        int
	RateLimit   int // requests per minute per client, 0 disables

	DBHost     string
	DBPort     string
	DBDatabase string
	DBUsername string
	DBPassword string
	DBSchema   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MultiplierTablePath string
	DefaultBalance      decimal.Decimal
	SessionTTL          time.Duration
	CommandQueueSize    int
	CommandTimeout      time.Duration

	PaymentPollInterval time.Duration
	PaymentPollTimeout  time.Duration

	EventsDriver      string // "kafka", "nats", "none"
	KafkaBrokers      []string
	NatsURL           string
	EventsTopicPrefix string

	MerchantUPIID      string
	MerchantName       string
	BankAccountName    string
	BankAccountNumber  string
	BankIFSCCode       string
	BankName           string
	OwnerWalletAddress string
	RatesURL           string
	RatesTTL           time.Duration

	MigrationsPath string
}

func Load() Config {
	return Config{
		Env:         getEnv("ENV", "local"),
		ServiceName: getEnv("SERVICE_NAME", "scratch2x"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		Port:        getEnvAsInt("PORT", 8080),
		RateLimit:   getEnvAsInt("RATE_LIMIT", 300),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBDatabase: getEnv("DB_DATABASE", "scratch"),
		DBUsername: getEnv("DB_USERNAME", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBSchema:   getEnv("DB_SCHEMA", "public"),

		RedisAddr:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		MultiplierTablePath: getEnv("MULTIPLIER_TABLE_PATH", ""),
		DefaultBalance:      getEnvAsDecimal("DEFAULT_BALANCE", decimal.NewFromInt(1000)),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		CommandQueueSize:    getEnvAsInt("COMMAND_QUEUE_SIZE", 1000),
		CommandTimeout:      getEnvAsDuration("COMMAND_TIMEOUT", 5*time.Second),

		PaymentPollInterval: getEnvAsDuration("PAYMENT_POLL_INTERVAL", 3*time.Second),
		PaymentPollTimeout:  getEnvAsDuration("PAYMENT_POLL_TIMEOUT", 30*time.Minute),

		EventsDriver:      strings.ToLower(getEnv("EVENTS_DRIVER", "none")),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		NatsURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		EventsTopicPrefix: getEnv("EVENTS_TOPIC_PREFIX", "scratch"),

		MerchantUPIID:      getEnv("MERCHANT_UPI_ID", "merchant@upi"),
		MerchantName:       getEnv("MERCHANT_NAME", "Scratch 2x"),
		BankAccountName:    getEnv("BANK_ACCOUNT_NAME", "Scratch 2x Pvt Ltd"),
		BankAccountNumber:  getEnv("BANK_ACCOUNT_NUMBER", ""),
		BankIFSCCode:       getEnv("BANK_IFSC_CODE", ""),
		BankName:           getEnv("BANK_NAME", ""),
		OwnerWalletAddress: getEnv("OWNER_WALLET_ADDRESS", ""),
		RatesURL:           getEnv("RATES_URL", "https://api.coingecko.com/api/v3/simple/price"),
		RatesTTL:           getEnvAsDuration("RATES_TTL", 60*time.Second),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://internal/database/migrations"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil && !d.IsNegative() {
			return d
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
