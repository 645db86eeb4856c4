// Package config loads connkit settings from a config file, CONNKIT_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"connkit/internal/logger"
)

// Config is the full set of runtime settings.
type Config struct {
	Log            logger.Config `mapstructure:"log"`
	HTTP           HTTPConfig    `mapstructure:"http"`
	Server         ServerConfig  `mapstructure:"server"`
	Drive          DriveConfig   `mapstructure:"drive"`
	ConnectionsDir string        `mapstructure:"connections_dir"`
	SecretsFile    string        `mapstructure:"secrets_file"`
	FormsFile      string        `mapstructure:"forms_file"`
	ContentDir     string        `mapstructure:"content_dir"`
	PluginsDir     string        `mapstructure:"plugins_dir"`
}

// HTTPConfig controls the outbound transport shared by all connectors.
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	// RateLimit is requests per second across all connectors; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DriveConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.rate_limit", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("drive.max_pages", 10)
	v.SetDefault("connections_dir", "./connections")
	v.SetDefault("secrets_file", "")
	v.SetDefault("forms_file", "")
	v.SetDefault("content_dir", "./content")
	v.SetDefault("plugins_dir", "./plugins")
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.encoding",
	"timeout":         "http.timeout",
	"max-retries":     "http.max_retries",
	"rate-limit":      "http.rate_limit",
	"connections-dir": "connections_dir",
	"secrets-file":    "secrets_file",
	"forms-file":      "forms_file",
	"content-dir":     "content_dir",
	"plugins-dir":     "plugins_dir",
	"port":            "server.port",
}

// Load reads configuration. path may be empty, in which case connkit.yaml is
// searched for in the working directory; a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("CONNKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("connkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding flag %q: %w", f.Name, err)
		}
	})
	return bindErr
}

// Validate rejects settings the executor cannot honour.
func (c *Config) Validate() error {
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be at least 1")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit must not be negative")
	}
	if c.Drive.MaxPages < 1 {
		return fmt.Errorf("drive.max_pages must be at least 1")
	}
	return nil
}
