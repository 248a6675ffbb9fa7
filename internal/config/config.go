// Package config provides configuration loading and validation for the
// leadscout service. Values come from defaults, an optional config.yaml,
// and LEADSCOUT_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Source is a tracked inbox: a page identified by a stable name with its
// Graph API access token. Category overrides the derived category for
// records extracted from this source; empty means "use the fallback".
type Source struct {
	Name     string `mapstructure:"name"     validate:"required"`
	Token    string `mapstructure:"token"    validate:"required"`
	Category string `mapstructure:"category"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GraphConfig holds settings for the conversation-listing API client.
type GraphConfig struct {
	BaseURL           string        `mapstructure:"base_url"           validate:"required,url"`
	APIVersion        string        `mapstructure:"api_version"        validate:"required"`
	Timeout           time.Duration `mapstructure:"timeout"            validate:"min=1s,max=5m"`
	ConversationLimit int           `mapstructure:"conversation_limit" validate:"min=0"`
	MessageLimit      int           `mapstructure:"message_limit"      validate:"min=0"`
	MaxPages          int           `mapstructure:"max_pages"          validate:"min=0"`
}

// SchedulerConfig controls the automatic extraction schedule.
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"     validate:"min=1m"`
	Jitter      time.Duration `mapstructure:"jitter"`
	MinInterval time.Duration `mapstructure:"min_interval" validate:"min=0"`
	MaxFailures int           `mapstructure:"max_failures" validate:"min=1"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required"`
}

// TelegramConfig controls the optional run-report notifier. An empty token
// disables notifications.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// PhoneConfig controls matcher behavior.
type PhoneConfig struct {
	// NormalizeArabic converts Arabic-Indic digit matches to Latin digits at
	// ingest. Off by default: the same number typed in both numeral systems is
	// then treated as two distinct keys, matching historical behavior.
	NormalizeArabic bool `mapstructure:"normalize_arabic"`
}

// CategoryConfig holds annotation settings.
type CategoryConfig struct {
	Fallback string `mapstructure:"fallback" validate:"required"`
}

// Config defines the full application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Phone     PhoneConfig     `mapstructure:"phone"`
	Category  CategoryConfig  `mapstructure:"category"`
	Sources   []Source        `mapstructure:"sources" validate:"min=1,dive"`
}

// Load reads configuration from the given path (or config.yaml in the
// working directory when empty), applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults plus env still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("database.path", "leadscout.db")

	v.SetDefault("graph.base_url", "https://graph.facebook.com")
	v.SetDefault("graph.api_version", "v18.0")
	v.SetDefault("graph.timeout", 30*time.Second)
	v.SetDefault("graph.conversation_limit", 0)
	v.SetDefault("graph.message_limit", 0)
	v.SetDefault("graph.max_pages", 50)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 10*time.Minute)
	v.SetDefault("scheduler.jitter", time.Minute)
	v.SetDefault("scheduler.min_interval", 10*time.Minute)
	v.SetDefault("scheduler.max_failures", 3)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.addr", ":8080")

	v.SetDefault("phone.normalize_arabic", false)

	v.SetDefault("category.fallback", "uncategorized")
}
