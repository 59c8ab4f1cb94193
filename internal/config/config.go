package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Auth    AuthConfig
	Order   OrderConfig
	Redis   RedisConfig
	Ledger  LedgerConfig
	Kafka   KafkaConfig
	Receipt ReceiptConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	TrustProxyHeaders bool
}

type AuthConfig struct {
	Password      string
	SigningKey    string
	SessionTTL    time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
}

type OrderConfig struct {
	CatalogFile          string
	MaxPerCategory       int
	RetainEventAfterSale bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LedgerConfig struct {
	Timeout time.Duration
	DB      LedgerDBConfig
	Sheet   SheetConfig
}

type LedgerDBConfig struct {
	Driver     string
	DSN        string
	Migrations bool
}

type SheetConfig struct {
	SpreadsheetID   string
	Range           string
	CredentialsFile string
	Endpoint        string
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	SalesTopic string
}

type ReceiptConfig struct {
	Secret string
}

type LogConfig struct {
	Dir   string
	Level string
}

func Load() *Config {
	password := getEnv("APP_PASSWORD", "")
	return &Config{
		Server: ServerConfig{
			Port:              getEnv("PORT", ":8080"),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		},
		Auth: AuthConfig{
			Password: password,
			// tokens are signed with the access password unless a key is set
			SigningKey:    getEnv("SESSION_SIGNING_KEY", password),
			SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
			MaxAttempts:   getEnvInt("AUTH_MAX_ATTEMPTS", 5),
			AttemptWindow: getEnvDuration("AUTH_ATTEMPT_WINDOW", 5*time.Minute),
		},
		Order: OrderConfig{
			CatalogFile:          getEnv("CATALOG_FILE", ""),
			MaxPerCategory:       getEnvInt("MAX_TICKETS_PER_CATEGORY", 50),
			RetainEventAfterSale: getEnvBool("RETAIN_EVENT_AFTER_SALE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Ledger: LedgerConfig{
			Timeout: getEnvDuration("LEDGER_TIMEOUT", 5*time.Second),
			DB: LedgerDBConfig{
				Driver:     getEnv("LEDGER_DB_DRIVER", ""),
				DSN:        getEnv("LEDGER_DB_DSN", ""),
				Migrations: getEnvBool("LEDGER_DB_MIGRATIONS", true),
			},
			Sheet: SheetConfig{
				SpreadsheetID:   getEnv("LEDGER_SHEET_ID", ""),
				Range:           getEnv("LEDGER_SHEET_RANGE", "Sales!A1"),
				CredentialsFile: getEnv("LEDGER_SHEET_CREDENTIALS_FILE", ""),
				Endpoint:        getEnv("LEDGER_SHEET_ENDPOINT", ""),
			},
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			SalesTopic: getEnv("KAFKA_SALES_TOPIC", "club.pos.sales"),
		},
		Receipt: ReceiptConfig{
			Secret: getEnv("RECEIPT_SECRET", ""),
		},
		Log: LogConfig{
			Dir:   getEnv("LOG_DIR", "logs"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// Validate reports every setting the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Password == "" {
		errs = append(errs, errors.New("APP_PASSWORD must be set"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Auth.MaxAttempts > 0 && c.Auth.AttemptWindow <= 0 {
		errs = append(errs, errors.New("AUTH_ATTEMPT_WINDOW must be positive when attempts are limited"))
	}
	if c.Order.MaxPerCategory <= 0 {
		errs = append(errs, errors.New("MAX_TICKETS_PER_CATEGORY must be positive"))
	}
	if c.Ledger.Timeout <= 0 {
		errs = append(errs, errors.New("LEDGER_TIMEOUT must be positive"))
	}
	switch c.Ledger.DB.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DB_DRIVER %q is not one of sqlite, postgres", c.Ledger.DB.Driver))
	}
	if c.Ledger.DB.Driver != "" && c.Ledger.DB.DSN == "" {
		errs = append(errs, errors.New("LEDGER_DB_DSN must be set when LEDGER_DB_DRIVER is"))
	}
	if c.Ledger.Sheet.SpreadsheetID != "" && c.Ledger.Sheet.CredentialsFile == "" {
		errs = append(errs, errors.New("LEDGER_SHEET_CREDENTIALS_FILE must be set when LEDGER_SHEET_ID is"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.SalesTopic == "") {
		errs = append(errs, errors.New("KAFKA_BROKERS and KAFKA_SALES_TOPIC must be set when KAFKA_ENABLED is"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
