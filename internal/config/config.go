package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMongoDB = "mongodb"
	BackendMemory  = "memory"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	WhatsApp  WhatsAppConfig
	Sheets    SheetsConfig
	Reporting ReportingConfig
	Events    EventsConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// LogConfig selects the minimum log level.
type LogConfig struct {
	Level string
}

// StoreConfig selects the record store and its session behaviour.
type StoreConfig struct {
	Backend string
	// Private restricts each session to the records its user created.
	Private      bool
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
// The channel is disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken    string
	PhoneNumberID  string
	VerifyToken    string
	BaseURL        string
	APIVersion     string
	ManagerID      string
	AllowedSenders []string
}

// Enabled reports whether the WhatsApp channel is configured.
func (c WhatsAppConfig) Enabled() bool { return c.AccessToken != "" }

// SheetsConfig contains configuration required to interact with Google Sheets.
// The daily mirror is disabled when SpreadsheetID is empty.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the Google Sheets mirror is configured.
func (c SheetsConfig) Enabled() bool { return c.SpreadsheetID != "" }

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule         string
	LowStockCronSchedule string
	Timezone             string
}

// Location resolves the reporting time zone.
func (c ReportingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// EventsConfig points at the AMQP broker. Events are dropped when URL is empty.
type EventsConfig struct {
	URL      string
	Exchange string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	private, err := strconv.ParseBool(getenvWithDefault("LEDGER_PRIVATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("LEDGER_PRIVATE: %w", err)
	}
	retryInitial, err := time.ParseDuration(getenvWithDefault("SUBSCRIPTION_RETRY_INITIAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("SUBSCRIPTION_RETRY_INITIAL: %w", err)
	}
	retryMax, err := time.ParseDuration(getenvWithDefault("SUBSCRIPTION_RETRY_MAX", "30s"))
	if err != nil {
		return nil, fmt.Errorf("SUBSCRIPTION_RETRY_MAX: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:      strings.ToLower(getenvWithDefault("STORE_BACKEND", BackendMongoDB)),
			Private:      private,
			RetryInitial: retryInitial,
			RetryMax:     retryMax,
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "shopledger"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:    os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:  os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:    os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:        getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:     getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ManagerID:      os.Getenv("WHATSAPP_MANAGER_ID"),
			AllowedSenders: splitList(os.Getenv("WHATSAPP_ALLOWED_SENDERS")),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
		},
		Reporting: ReportingConfig{
			CronSchedule:         getenvWithDefault("REPORT_CRON_SCHEDULE", "0 21 * * *"),
			LowStockCronSchedule: getenvWithDefault("LOW_STOCK_CRON_SCHEDULE", "0 9 * * *"),
			Timezone:             getenvWithDefault("REPORT_TIMEZONE", "Asia/Dhaka"),
		},
		Events: EventsConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getenvWithDefault("AMQP_EXCHANGE", "shopledger.events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.Store.Backend {
	case BackendMongoDB:
		if c.MongoDB.URI == "" {
			return errors.New("MONGODB_URI must be provided")
		}
		if c.MongoDB.DBName == "" {
			return errors.New("MONGODB_DB_NAME must be provided")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendMongoDB, BackendMemory, c.Store.Backend)
	}

	if c.Store.RetryInitial <= 0 || c.Store.RetryMax < c.Store.RetryInitial {
		return errors.New("SUBSCRIPTION_RETRY_INITIAL must be positive and not exceed SUBSCRIPTION_RETRY_MAX")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.VerifyToken == "":
			return errors.New("META_VERIFY_TOKEN must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.Reporting.CronSchedule == "" {
		return errors.New("REPORT_CRON_SCHEDULE must be provided")
	}

	if _, err := c.Reporting.Location(); err != nil {
		return fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
