package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL     MySQLConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Migrate   bool
	HTTPAddr  string
	Auth      AuthConfig
	Bot       BotConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// AuthConfig holds login configuration
type AuthConfig struct {
	// AppPassword is the shared password granting access to the dashboard.
	AppPassword string
	// SessionTTLDays is how long an issued session token stays valid.
	SessionTTLDays int
}

// BotConfig holds monitoring engine configuration
type BotConfig struct {
	// BaseURL is the vendor shop root.
	BaseURL string
	// StoreCode is the vendor store switch appended to catalog requests.
	StoreCode string
	// ScanInterval is the delay between availability polls.
	ScanInterval time.Duration
	// ErrorBackoff is the extra delay after an unreadable or empty snapshot.
	ErrorBackoff time.Duration
	// CartHold is how long a secured cart is held before re-carting.
	CartHold time.Duration
	// RequestTimeout bounds every outbound vendor request.
	RequestTimeout time.Duration
	// CartPositiveIndicators / CartNegativeIndicators are the checkout-page
	// phrases used to tell a real cart from a phantom one.
	CartPositiveIndicators []string
	CartNegativeIndicators []string
}

// SchedulerConfig holds scheduled task trigger configuration
type SchedulerConfig struct {
	Enabled     bool
	IntervalSec int
}

// NotifyConfig holds Discord webhook configuration
type NotifyConfig struct {
	DiscordWebhookURL string
	PublicBaseURL     string
}

// The vendor renders its storefront in German only; these defaults mirror
// the phrases the checkout page actually emits.
var (
	defaultNegativeIndicators = []string{
		"nicht mehr verfügbar",
		"Warenkorb ist leer",
		"leider nicht mehr",
		"ausverkauft",
		"Bedauerlicherweise",
	}
	defaultPositiveIndicators = []string{
		"Zusammenfassung",
		"Zwischensumme",
		"Gesamtsumme",
		"Weiter zur Kasse",
	}
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "go_ticketbot"),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Auth: AuthConfig{
			AppPassword:    getEnv("APP_PASSWORD", ""),
			SessionTTLDays: getEnvInt("SESSION_TTL_DAYS", 30),
		},
		Bot: BotConfig{
			BaseURL:                getEnv("BOT_BASE_URL", "https://audidefuehrungen2.regiondo.de"),
			StoreCode:              getEnv("BOT_STORE_CODE", "wl_de"),
			ScanInterval:           getEnvDurationMS("BOT_SCAN_INTERVAL_MS", 100),
			ErrorBackoff:           getEnvDurationMS("BOT_ERROR_BACKOFF_MS", 5000),
			CartHold:               time.Duration(getEnvInt("BOT_CART_HOLD_SEC", 1020)) * time.Second,
			RequestTimeout:         time.Duration(getEnvInt("BOT_REQUEST_TIMEOUT_SEC", 15)) * time.Second,
			CartPositiveIndicators: getEnvList("BOT_CART_POSITIVE_INDICATORS", defaultPositiveIndicators),
			CartNegativeIndicators: getEnvList("BOT_CART_NEGATIVE_INDICATORS", defaultNegativeIndicators),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getEnv("SCHEDULER_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("SCHEDULER_INTERVAL_SEC", 30),
		},
		Notify: NotifyConfig{
			DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
			PublicBaseURL:     getEnv("PUBLIC_BASE_URL", ""),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Auth.AppPassword == "" {
		return nil, fmt.Errorf("APP_PASSWORD is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationMS(key string, defaultMS int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMS)) * time.Millisecond
}

// getEnvList splits a pipe-separated env value; phrases may contain commas.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return splitList(value, defaultValue)
}

func splitList(raw string, defaultValue []string) []string {
	parts := strings.Split(raw, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	getValueList := func(envKey, iniSection, iniKey string, defaultValue []string) []string {
		raw := getValue(envKey, iniSection, iniKey, "")
		if raw == "" {
			return defaultValue
		}
		return splitList(raw, defaultValue)
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 1440),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "go_ticketbot"),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		Auth: AuthConfig{
			AppPassword:    getValue("APP_PASSWORD", "auth", "app_password", ""),
			SessionTTLDays: getValueInt("SESSION_TTL_DAYS", "auth", "session_ttl_days", 30),
		},
		Bot: BotConfig{
			BaseURL:                getValue("BOT_BASE_URL", "bot", "base_url", "https://audidefuehrungen2.regiondo.de"),
			StoreCode:              getValue("BOT_STORE_CODE", "bot", "store_code", "wl_de"),
			ScanInterval:           time.Duration(getValueInt("BOT_SCAN_INTERVAL_MS", "bot", "scan_interval_ms", 100)) * time.Millisecond,
			ErrorBackoff:           time.Duration(getValueInt("BOT_ERROR_BACKOFF_MS", "bot", "error_backoff_ms", 5000)) * time.Millisecond,
			CartHold:               time.Duration(getValueInt("BOT_CART_HOLD_SEC", "bot", "cart_hold_sec", 1020)) * time.Second,
			RequestTimeout:         time.Duration(getValueInt("BOT_REQUEST_TIMEOUT_SEC", "bot", "request_timeout_sec", 15)) * time.Second,
			CartPositiveIndicators: getValueList("BOT_CART_POSITIVE_INDICATORS", "bot", "cart_positive_indicators", defaultPositiveIndicators),
			CartNegativeIndicators: getValueList("BOT_CART_NEGATIVE_INDICATORS", "bot", "cart_negative_indicators", defaultNegativeIndicators),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getValueBool("SCHEDULER_ENABLED", "scheduler", "enabled", true),
			IntervalSec: getValueInt("SCHEDULER_INTERVAL_SEC", "scheduler", "interval_sec", 30),
		},
		Notify: NotifyConfig{
			DiscordWebhookURL: getValue("DISCORD_WEBHOOK_URL", "notify", "discord_webhook_url", ""),
			PublicBaseURL:     getValue("PUBLIC_BASE_URL", "notify", "public_base_url", ""),
		},
	}

	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Auth.AppPassword == "" {
		return nil, fmt.Errorf("APP_PASSWORD is required")
	}

	return cfg, nil
}
