package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/workdigest/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the workdigest configuration file for syntax and semantic errors.`,
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(out, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		_, _ = fmt.Fprintln(out)
		_, _ = red.Fprintf(out, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(out, "   - %s\n", key)
		}
		_, _ = fmt.Fprintln(out, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(out, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults(), unknownKeys)
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	keys := map[string]bool{
		// Aggregation
		"aggregation.exclude_recent":      true,
		"aggregation.time_block_minutes":  true,
		"aggregation.top_keywords":        true,
		"aggregation.top_files":           true,
		"aggregation.top_urls":            true,
		"aggregation.global_top_keywords": true,
		"aggregation.global_top_files":    true,
		"aggregation.global_top_urls":     true,
		"aggregation.sampling_interval":   true,
		"aggregation.min_captures":        true,
		"aggregation.timezone":            true,

		// Storage
		"storage.type":                 true,
		"storage.path":                 true,
		"storage.redis.host":           true,
		"storage.redis.port":           true,
		"storage.redis.password":       true,
		"storage.redis.db":             true,
		"storage.redis.pool_size":      true,
		"storage.redis.min_idle_conns": true,
		"storage.redis.dial_timeout":   true,
		"storage.redis.read_timeout":   true,
		"storage.redis.write_timeout":  true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Server
		"server.bind_address": true,
		"server.port":         true,

		// Schedule
		"schedule.enabled": true,
		"schedule.run_at":  true,

		// Notifications
		"notify.enabled":  true,
		"notify.app_name": true,

		// Cache
		"cache.features_size": true,
	}

	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Aggregation
	_, _ = cyan.Println("\n[aggregation]")
	dumpField("  exclude_recent", cfg.Aggregation.ExcludeRecent, defaultCfg.Aggregation.ExcludeRecent, yellow, green)
	dumpField("  time_block_minutes", cfg.Aggregation.TimeBlockMinutes, defaultCfg.Aggregation.TimeBlockMinutes, yellow, green)
	dumpField("  top_keywords", cfg.Aggregation.TopKeywords, defaultCfg.Aggregation.TopKeywords, yellow, green)
	dumpField("  top_files", cfg.Aggregation.TopFiles, defaultCfg.Aggregation.TopFiles, yellow, green)
	dumpField("  top_urls", cfg.Aggregation.TopURLs, defaultCfg.Aggregation.TopURLs, yellow, green)
	dumpField("  global_top_keywords", cfg.Aggregation.GlobalTopKeywords, defaultCfg.Aggregation.GlobalTopKeywords, yellow, green)
	dumpField("  global_top_files", cfg.Aggregation.GlobalTopFiles, defaultCfg.Aggregation.GlobalTopFiles, yellow, green)
	dumpField("  global_top_urls", cfg.Aggregation.GlobalTopURLs, defaultCfg.Aggregation.GlobalTopURLs, yellow, green)
	dumpField("  sampling_interval", cfg.Aggregation.SamplingInterval, defaultCfg.Aggregation.SamplingInterval, yellow, green)
	dumpField("  min_captures", cfg.Aggregation.MinCaptures, defaultCfg.Aggregation.MinCaptures, yellow, green)
	dumpField("  timezone", cfg.Aggregation.Timezone, defaultCfg.Aggregation.Timezone, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  port", cfg.Server.Port, defaultCfg.Server.Port, yellow, green)

	// Schedule
	_, _ = cyan.Println("\n[schedule]")
	dumpField("  enabled", cfg.Schedule.Enabled, defaultCfg.Schedule.Enabled, yellow, green)
	dumpField("  run_at", cfg.Schedule.RunAt, defaultCfg.Schedule.RunAt, yellow, green)

	// Notifications
	_, _ = cyan.Println("\n[notify]")
	dumpField("  enabled", cfg.Notify.Enabled, defaultCfg.Notify.Enabled, yellow, green)
	dumpField("  app_name", cfg.Notify.AppName, defaultCfg.Notify.AppName, yellow, green)

	// Cache
	_, _ = cyan.Println("\n[cache]")
	dumpField("  features_size", cfg.Cache.FeaturesSize, defaultCfg.Cache.FeaturesSize, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
