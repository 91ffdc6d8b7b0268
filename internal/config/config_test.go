package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_PORT", "LOG_LEVEL", "STORE_BACKEND", "LEDGER_PRIVATE",
	"SUBSCRIPTION_RETRY_INITIAL", "SUBSCRIPTION_RETRY_MAX",
	"MONGODB_URI", "MONGODB_DB_NAME",
	"WHATSAPP_TOKEN", "WHATSAPP_PHONE_NUMBER_ID", "META_VERIFY_TOKEN",
	"WHATSAPP_MANAGER_ID", "WHATSAPP_ALLOWED_SENDERS",
	"GOOGLE_SHEETS_CREDENTIALS_PATH", "GOOGLE_SHEET_DATABASE_ID",
	"REPORT_CRON_SCHEDULE", "LOW_STOCK_CRON_SCHEDULE", "REPORT_TIMEZONE",
	"AMQP_URL", "AMQP_EXCHANGE",
}

// clearEnv unsets every variable Load reads for the duration of the test.
// godotenv never overrides a variable that is set, even to "".
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeEnvFile(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Store.Backend != BackendMongoDB {
		t.Errorf("server/store = %+v / %+v", cfg.Server, cfg.Store)
	}
	if cfg.Store.RetryInitial != time.Second || cfg.Store.RetryMax != 30*time.Second {
		t.Errorf("retry = %v..%v", cfg.Store.RetryInitial, cfg.Store.RetryMax)
	}
	if cfg.MongoDB.URI != "mongodb://localhost:27017" {
		t.Errorf("mongo uri = %q", cfg.MongoDB.URI)
	}
	if cfg.WhatsApp.Enabled() || cfg.Sheets.Enabled() {
		t.Error("optional channels enabled without credentials")
	}
	if cfg.Reporting.CronSchedule != "0 21 * * *" || cfg.Reporting.LowStockCronSchedule != "0 9 * * *" {
		t.Errorf("reporting = %+v", cfg.Reporting)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeEnvFile(t, `STORE_BACKEND=memory
LEDGER_PRIVATE=true
WHATSAPP_TOKEN=tok
WHATSAPP_PHONE_NUMBER_ID=123
META_VERIFY_TOKEN=verify
WHATSAPP_ALLOWED_SENDERS=2246, 2247 ,
REPORT_TIMEZONE=UTC
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != BackendMemory || !cfg.Store.Private {
		t.Errorf("store = %+v", cfg.Store)
	}
	if len(cfg.WhatsApp.AllowedSenders) != 2 || cfg.WhatsApp.AllowedSenders[1] != "2247" {
		t.Errorf("allowed senders = %q", cfg.WhatsApp.AllowedSenders)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Store:     StoreConfig{Backend: BackendMemory, RetryInitial: time.Second, RetryMax: time.Minute},
			Reporting: ReportingConfig{CronSchedule: "0 21 * * *", Timezone: "UTC"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown backend", mutate: func(c *Config) { c.Store.Backend = "redis" }},
		{name: "mongo without uri", mutate: func(c *Config) { c.Store.Backend = BackendMongoDB; c.MongoDB.DBName = "x" }},
		{name: "retry max below initial", mutate: func(c *Config) { c.Store.RetryMax = time.Millisecond }},
		{name: "whatsapp without phone id", mutate: func(c *Config) { c.WhatsApp.AccessToken = "tok" }},
		{name: "sheets without credentials", mutate: func(c *Config) { c.Sheets.SpreadsheetID = "sheet" }},
		{name: "bad timezone", mutate: func(c *Config) { c.Reporting.Timezone = "Mars/Olympus" }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("baseline config invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
