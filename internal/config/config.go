package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string

	Daraja struct {
		ConsumerKey     string
		ConsumerSecret  string
		ShortCode       string
		Passkey         string
		TillNumber      string
		CallbackURL     string
		OAuthURL        string
		STKPushURL      string
		AccountRef      string
		TransactionDesc string
	}

	StoreBackend string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	MigrationsURL string

	KafkaBrokerURL          string
	KafkaPaymentStatusTopic string

	PollInterval    time.Duration
	PollMaxAttempts int
}

func LoadConfig() (*Config, error) {
	// Same contract as dotenv: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", ":8080")
	cfg.AllowedOrigins = splitAndTrim(getEnvOrDefault("ALLOWED_ORIGINS", "*"))

	cfg.Daraja.ConsumerKey = os.Getenv("MPESA_CONSUMER_KEY")
	cfg.Daraja.ConsumerSecret = os.Getenv("MPESA_CONSUMER_SECRET")
	cfg.Daraja.ShortCode = os.Getenv("MPESA_SHORTCODE")
	cfg.Daraja.Passkey = os.Getenv("MPESA_PASSKEY")
	cfg.Daraja.TillNumber = os.Getenv("MPESA_TILL_NUMBER")
	cfg.Daraja.CallbackURL = os.Getenv("MPESA_CALLBACK_URL")
	cfg.Daraja.OAuthURL = getEnvOrDefault("MPESA_OAUTH_URL", "")
	cfg.Daraja.STKPushURL = getEnvOrDefault("MPESA_STKPUSH_URL", "")
	cfg.Daraja.AccountRef = getEnvOrDefault("MPESA_ACCOUNT_REFERENCE", "themabinti.com")
	cfg.Daraja.TransactionDesc = getEnvOrDefault("MPESA_TRANSACTION_DESC", "Payment to themabinti.com")

	cfg.StoreBackend = getEnvOrDefault("STORE_BACKEND", StoreBackendMemory)
	if cfg.StoreBackend != StoreBackendMemory && cfg.StoreBackend != StoreBackendPostgres {
		return nil, fmt.Errorf("unknown STORE_BACKEND %q, expected %q or %q",
			cfg.StoreBackend, StoreBackendMemory, StoreBackendPostgres)
	}

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "mpesa_payments")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")
	cfg.MigrationsURL = getEnvOrDefault("MIGRATIONS_URL", "file://migrations")

	cfg.KafkaBrokerURL = os.Getenv("KAFKA_BROKER_URL")
	cfg.KafkaPaymentStatusTopic = getEnvOrDefault("KAFKA_PAYMENT_STATUS_TOPIC", "payment_status_updates")

	cfg.PollInterval = getEnvAsDuration("POLL_INTERVAL", 3*time.Second)
	cfg.PollMaxAttempts = getEnvAsInt("POLL_MAX_ATTEMPTS", 60)

	for name, v := range map[string]string{
		"MPESA_CONSUMER_KEY":    cfg.Daraja.ConsumerKey,
		"MPESA_CONSUMER_SECRET": cfg.Daraja.ConsumerSecret,
		"MPESA_SHORTCODE":       cfg.Daraja.ShortCode,
		"MPESA_PASSKEY":         cfg.Daraja.Passkey,
		"MPESA_TILL_NUMBER":     cfg.Daraja.TillNumber,
		"MPESA_CALLBACK_URL":    cfg.Daraja.CallbackURL,
	} {
		if v == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", name)
		}
	}

	return cfg, nil
}

// KafkaEnabled reports whether status events should be published at all.
func (c *Config) KafkaEnabled() bool {
	return c.KafkaBrokerURL != ""
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
