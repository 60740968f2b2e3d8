package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Fetcher     FetcherConfig     `yaml:"fetcher"`
	Legacy      LegacyConfig      `yaml:"legacy"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Admin       AdminConfig       `yaml:"admin"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Redis       RedisConfig       `yaml:"redis"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
	// EncryptionKey is a hex encoded 32 byte key. Credentials are stored in
	// plaintext when it is empty.
	EncryptionKey string `yaml:"encryption_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type ProvidersConfig struct {
	ShippingBaseURL string        `yaml:"shipping_base_url"`
	PrintBaseURL    string        `yaml:"print_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type FetcherConfig struct {
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

// LegacyConfig holds the environment-level credentials used when a webhook
// arrives without a tenant id in its path.
type LegacyConfig struct {
	ShippingAPIKey string `yaml:"shipping_api_key"`
	PrintAPIKey    string `yaml:"print_api_key"`
	PrinterID      string `yaml:"printer_id"`
	WebhookSecret  string `yaml:"webhook_secret"`
}

type WebhookConfig struct {
	VerifySignatures bool   `yaml:"verify_signatures"`
	SignatureHeader  string `yaml:"signature_header"`
}

type AdminConfig struct {
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type IdempotencyConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         5000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Database: DatabaseConfig{
			Path: "./data/accounts.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Providers: ProvidersConfig{
			ShippingBaseURL: "https://api.easypost.com/v2",
			PrintBaseURL:    "https://api.printnode.com",
			RequestTimeout:  15 * time.Second,
		},
		Fetcher: FetcherConfig{
			DownloadTimeout: 30 * time.Second,
		},
		Webhook: WebhookConfig{
			VerifySignatures: false,
			SignatureHeader:  "X-Hmac-Signature",
		},
		Admin: AdminConfig{
			TokenTTL: time.Hour,
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. The unprefixed names are
// the ones existing deployments already export.
func (c *Config) ApplyEnv() {
	if v := firstEnv("LABELRELAY_PORT", "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := firstEnv("LABELRELAY_DB_PATH", "DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("LABELRELAY_DB_ENCRYPTION_KEY"); v != "" {
		c.Database.EncryptionKey = v
	}

	if v := firstEnv("LABELRELAY_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("LABELRELAY_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := firstEnv("LABELRELAY_SHIPPING_API_KEY", "EASYPOST_API_KEY"); v != "" {
		c.Legacy.ShippingAPIKey = v
	}

	if v := firstEnv("LABELRELAY_PRINT_API_KEY", "PRINTNODE_API_KEY"); v != "" {
		c.Legacy.PrintAPIKey = v
	}

	if v := firstEnv("LABELRELAY_PRINTER_ID", "PRINTNODE_PRINTER_ID"); v != "" {
		c.Legacy.PrinterID = v
	}

	if v := firstEnv("LABELRELAY_WEBHOOK_SECRET", "EASYPOST_WEBHOOK_SECRET"); v != "" {
		c.Legacy.WebhookSecret = v
	}

	if v := os.Getenv("LABELRELAY_VERIFY_SIGNATURES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Webhook.VerifySignatures = b
		}
	}

	if v := firstEnv("LABELRELAY_ADMIN_API_KEY", "MANAGEMENT_API_KEY"); v != "" {
		c.Admin.APIKey = v
	}

	if v := os.Getenv("LABELRELAY_ADMIN_JWT_SECRET"); v != "" {
		c.Admin.JWTSecret = v
	}

	if v := os.Getenv("LABELRELAY_IDEMPOTENCY_BACKEND"); v != "" {
		c.Idempotency.Backend = v
	}

	if v := os.Getenv("LABELRELAY_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if k := c.Database.EncryptionKey; k != "" && len(k) != 64 {
		return fmt.Errorf("database encryption key must be 64 hex characters")
	}

	if c.Providers.ShippingBaseURL == "" || c.Providers.PrintBaseURL == "" {
		return fmt.Errorf("provider base urls are required")
	}

	if c.Providers.RequestTimeout <= 0 {
		return fmt.Errorf("provider request timeout must be positive")
	}

	if c.Fetcher.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if c.Webhook.VerifySignatures && c.Webhook.SignatureHeader == "" {
		return fmt.Errorf("signature header is required when signature verification is enabled")
	}

	if c.Admin.TokenTTL < 0 {
		return fmt.Errorf("admin token ttl must be non-negative")
	}

	validBackends := map[string]bool{
		"memory": true,
		"redis":  true,
	}

	if c.Idempotency.Enabled {
		if !validBackends[c.Idempotency.Backend] {
			return fmt.Errorf("invalid idempotency backend: %s (valid: memory, redis)", c.Idempotency.Backend)
		}
		if c.Idempotency.TTL <= 0 {
			return fmt.Errorf("idempotency ttl must be positive")
		}
		if c.Idempotency.Backend == "redis" && c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis idempotency backend")
		}
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
