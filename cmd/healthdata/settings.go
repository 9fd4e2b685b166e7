package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "HEALTHDATA"

// serviceConfigKeys are handed to the core config loader untouched.
var serviceConfigKeys = []string{"service_name", "listing", "pipeline"}

type dbSettings struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Debug  bool   `mapstructure:"debug"`
}

type logSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type fitbitSettings struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	APIBaseURL   string `mapstructure:"api_base_url"`
}

type settings struct {
	DB            dbSettings     `mapstructure:"db"`
	Log           logSettings    `mapstructure:"log"`
	Fitbit        fitbitSettings `mapstructure:"fitbit"`
	GrantCacheTTL time.Duration  `mapstructure:"grant_cache_ttl"`
	Timezone      string         `mapstructure:"timezone"`
	Migrate       bool           `mapstructure:"migrate"`

	// Service holds the raw service_name, listing and pipeline sections.
	Service map[string]any `mapstructure:"-"`
}

func (s settings) Location() (*time.Location, error) {
	name := strings.TrimSpace(s.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func bindPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("db-driver", "sqlite3", "database driver: sqlite3 or postgres")
	flags.String("db-dsn", "file:healthdata.db?cache=shared&_foreign_keys=on", "database connection string")
	flags.Bool("db-debug", false, "log SQL queries")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "json", "log format: json or console")
	flags.Duration("grant-cache-ttl", time.Minute, "grant read cache ttl, 0 disables the cache")
	flags.String("timezone", "UTC", "timezone used for daily pipeline windows")
	flags.Bool("migrate", true, "apply pending migrations on startup")
}

var flagKeys = map[string]string{
	"db-driver":       "db.driver",
	"db-dsn":          "db.dsn",
	"db-debug":        "db.debug",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"grant-cache-ttl": "grant_cache_ttl",
	"timezone":        "timezone",
	"migrate":         "migrate",
}

// loadSettings merges flag defaults < config file < env < explicit flags.
// Env keys use the HEALTHDATA_ prefix with dots replaced by underscores.
func loadSettings(cmd *cobra.Command) (settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return settings{}, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	for _, key := range []string{"fitbit.client_id", "fitbit.client_secret", "fitbit.api_base_url", "service_name"} {
		if err := v.BindEnv(key); err != nil {
			return settings{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path, _ := cmd.Flags().GetString("config"); strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return settings{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var out settings
	if err := v.Unmarshal(&out); err != nil {
		return settings{}, fmt.Errorf("unmarshal config: %w", err)
	}
	out.Service = map[string]any{}
	for _, key := range serviceConfigKeys {
		if v.IsSet(key) {
			out.Service[key] = v.Get(key)
		}
	}
	return out, nil
}
