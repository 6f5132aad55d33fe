package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // capture hosts (Windows) often ship without a zoneinfo database

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Aggregation AggregationConfig `mapstructure:"aggregation"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// AggregationConfig tunes the aggregation pipeline
type AggregationConfig struct {
	ExcludeRecent     string `mapstructure:"exclude_recent"`     // Settle window, e.g. "120s"
	TimeBlockMinutes  int    `mapstructure:"time_block_minutes"` // Width of a time block
	TopKeywords       int    `mapstructure:"top_keywords"`
	TopFiles          int    `mapstructure:"top_files"`
	TopURLs           int    `mapstructure:"top_urls"`
	GlobalTopKeywords int    `mapstructure:"global_top_keywords"` // Whole-day rankings may run longer
	GlobalTopFiles    int    `mapstructure:"global_top_files"`
	GlobalTopURLs     int    `mapstructure:"global_top_urls"`
	SamplingInterval  string `mapstructure:"sampling_interval"` // Capture interval, e.g. "120s"
	MinCaptures       int    `mapstructure:"min_captures"`      // Below this a run only warns
	Timezone          string `mapstructure:"timezone"`          // Empty keeps each record's own offset
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "file", "bolt" or "redis"
	Path  string      `mapstructure:"path"` // Log directory for "file", database file for "bolt"
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig defines the HTTP listener of the serve command
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// ScheduleConfig defines the daily aggregation run
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RunAt   string `mapstructure:"run_at"` // HH:MM local time
}

// NotifyConfig defines desktop notification settings
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	AppName string `mapstructure:"app_name"`
}

// CacheConfig sizes in-memory caches
type CacheConfig struct {
	FeaturesSize int `mapstructure:"features_size"`
}

// ExcludeRecentDuration returns the parsed settle window.
func (a AggregationConfig) ExcludeRecentDuration() time.Duration {
	d, _ := time.ParseDuration(a.ExcludeRecent)
	return d
}

// SamplingIntervalDuration returns the parsed capture interval.
func (a AggregationConfig) SamplingIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(a.SamplingInterval)
	return d
}

// Location resolves Timezone. A nil location means "use the record's offset".
func (a AggregationConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return nil, nil
	}
	return time.LoadLocation(a.Timezone)
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "workdigest", "config.yaml")
	}
	return "config.yaml"
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".local", "share", "workdigest", "logs")
	}
	return "logs"
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("WORKDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced by the defaults alone,
// without validation.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Aggregation defaults
	v.SetDefault("aggregation.exclude_recent", "120s")
	v.SetDefault("aggregation.time_block_minutes", 30)
	v.SetDefault("aggregation.top_keywords", 10)
	v.SetDefault("aggregation.top_files", 5)
	v.SetDefault("aggregation.top_urls", 5)
	v.SetDefault("aggregation.global_top_keywords", 10)
	v.SetDefault("aggregation.global_top_files", 5)
	v.SetDefault("aggregation.global_top_urls", 5)
	v.SetDefault("aggregation.sampling_interval", "120s")
	v.SetDefault("aggregation.min_captures", 5)
	v.SetDefault("aggregation.timezone", "")

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", defaultDataDir())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.port", 9464)

	// Schedule defaults
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.run_at", "18:00")

	// Notification defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.app_name", "workdigest")

	// Cache defaults
	v.SetDefault("cache.features_size", 31)
}

// validate validates the configuration
func validate(cfg *Config) error {
	agg := cfg.Aggregation
	if d, err := time.ParseDuration(agg.ExcludeRecent); err != nil || d < 0 {
		return fmt.Errorf("invalid aggregation.exclude_recent: %q", agg.ExcludeRecent)
	}
	if d, err := time.ParseDuration(agg.SamplingInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid aggregation.sampling_interval: %q", agg.SamplingInterval)
	}
	if agg.TimeBlockMinutes <= 0 || agg.TimeBlockMinutes > 60 || 60%agg.TimeBlockMinutes != 0 {
		return fmt.Errorf("invalid aggregation.time_block_minutes: %d (must divide 60)", agg.TimeBlockMinutes)
	}
	if agg.TopKeywords < 1 || agg.TopKeywords > 15 {
		return fmt.Errorf("invalid aggregation.top_keywords: %d (must be 1-15)", agg.TopKeywords)
	}
	if agg.TopFiles < 1 || agg.TopFiles > 10 {
		return fmt.Errorf("invalid aggregation.top_files: %d (must be 1-10)", agg.TopFiles)
	}
	if agg.TopURLs < 1 || agg.TopURLs > 10 {
		return fmt.Errorf("invalid aggregation.top_urls: %d (must be 1-10)", agg.TopURLs)
	}
	if agg.GlobalTopKeywords < 1 || agg.GlobalTopKeywords > 50 {
		return fmt.Errorf("invalid aggregation.global_top_keywords: %d (must be 1-50)", agg.GlobalTopKeywords)
	}
	if agg.GlobalTopFiles < 1 || agg.GlobalTopFiles > 20 {
		return fmt.Errorf("invalid aggregation.global_top_files: %d (must be 1-20)", agg.GlobalTopFiles)
	}
	if agg.GlobalTopURLs < 1 || agg.GlobalTopURLs > 20 {
		return fmt.Errorf("invalid aggregation.global_top_urls: %d (must be 1-20)", agg.GlobalTopURLs)
	}
	if agg.MinCaptures < 0 {
		return fmt.Errorf("invalid aggregation.min_captures: %d", agg.MinCaptures)
	}
	if _, err := agg.Location(); err != nil {
		return fmt.Errorf("invalid aggregation.timezone: %w", err)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "file"
	}
	switch cfg.Storage.Type {
	case "file", "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if _, err := time.Parse("15:04", cfg.Schedule.RunAt); err != nil {
		return fmt.Errorf("invalid schedule.run_at: %q (expected HH:MM)", cfg.Schedule.RunAt)
	}

	if cfg.Cache.FeaturesSize <= 0 {
		return fmt.Errorf("invalid cache.features_size: %d", cfg.Cache.FeaturesSize)
	}

	return nil
}
