package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all server settings, loaded once at startup and passed to
// every component that needs it. Nothing reads the environment after Load.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	DBHost     string `mapstructure:"db_host" validate:"required"`
	DBPort     string `mapstructure:"db_port" validate:"required"`
	DBUser     string `mapstructure:"db_user" validate:"required"`
	DBPassword string `mapstructure:"db_password"`
	DBName     string `mapstructure:"db_name" validate:"required"`

	AdminUsername string `mapstructure:"admin_username" validate:"required"`
	AdminPassword string `mapstructure:"admin_password" validate:"required,min=6"`

	StorageRoot string `mapstructure:"storage_root" validate:"required"`

	MaxUploadBytes  int64 `mapstructure:"max_upload_bytes" validate:"gt=0"`
	MaxPreviewBytes int64 `mapstructure:"max_preview_bytes" validate:"gt=0"`

	BulkMaxPaths       int  `mapstructure:"bulk_max_paths" validate:"gt=0"`
	BulkAsyncThreshold int  `mapstructure:"bulk_async_threshold" validate:"gt=0"`
	BulkAsyncEnabled   bool `mapstructure:"bulk_async_enabled"`

	SearchDefaultLimit int `mapstructure:"search_default_limit" validate:"gt=0"`
	SearchMaxLimit     int `mapstructure:"search_max_limit" validate:"gt=0"`

	DefaultShareExpiryDays   int  `mapstructure:"default_share_expiry_days" validate:"gte=0"`
	AllowUnlimitedShareLinks bool `mapstructure:"allow_unlimited_share_links"`

	ListDefaultLimit int `mapstructure:"list_default_limit" validate:"gt=0"`
	ListMaxLimit     int `mapstructure:"list_max_limit" validate:"gt=0"`

	// Mappings not refreshed within this many hours are considered stale
	// and eligible for pruning.
	CMSStaleWindowHours int `mapstructure:"cms_stale_window_hours" validate:"gt=0"`
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "stormcloud")
	v.SetDefault("db_password", "stormcloud_pass")
	v.SetDefault("db_name", "stormcloud")

	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "admin123")

	v.SetDefault("storage_root", "data/files")

	v.SetDefault("max_upload_bytes", int64(100)<<20)
	v.SetDefault("max_preview_bytes", int64(5)<<20)

	v.SetDefault("bulk_max_paths", 250)
	v.SetDefault("bulk_async_threshold", 50)
	v.SetDefault("bulk_async_enabled", true)

	v.SetDefault("search_default_limit", 100)
	v.SetDefault("search_max_limit", 500)

	v.SetDefault("default_share_expiry_days", 7)
	v.SetDefault("allow_unlimited_share_links", true)

	v.SetDefault("list_default_limit", 50)
	v.SetDefault("list_max_limit", 200)

	v.SetDefault("cms_stale_window_hours", 24)
}

// Load reads configuration from the environment (STORMCLOUD_ prefix) with
// sane defaults, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STORMCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with all defaults applied and no environment
// lookups. Used by tests.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
