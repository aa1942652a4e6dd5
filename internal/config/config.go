package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Daemon  DaemonConfig  `mapstructure:"daemon"`
	Updates UpdatesConfig `mapstructure:"updates"`
}

// APIConfig represents deploy-hosting API configuration
type APIConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"` // supports ${ENV_VAR} expansion
}

// DaemonConfig represents tray daemon configuration
type DaemonConfig struct {
	LogFile      string `mapstructure:"log_file"`
	LogLevel     string `mapstructure:"log_level"`
	SettingsFile string `mapstructure:"settings_file"` // empty = user config dir
}

// UpdatesConfig represents release update checking configuration
type UpdatesConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ReleasesURL   string `mapstructure:"releases_url"`
	CheckInterval string `mapstructure:"check_interval"`
}

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.deploybar")
		v.AddConfigPath("/etc/deploybar")
	}

	v.SetDefault("updates.enabled", true)

	// Read environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint is required")
	}
	if u, err := url.Parse(c.API.Endpoint); err != nil || u.Host == "" {
		return fmt.Errorf("api.endpoint must be a valid URL, got %q", c.API.Endpoint)
	}
	if c.API.Token == "" {
		return fmt.Errorf("api.token is required")
	}

	if c.Updates.Enabled && c.Updates.ReleasesURL != "" {
		if u, err := url.Parse(c.Updates.ReleasesURL); err != nil || u.Host == "" {
			return fmt.Errorf("updates.releases_url must be a valid URL, got %q", c.Updates.ReleasesURL)
		}
	}

	return nil
}

// GetCheckInterval returns the update check interval duration
func (c *UpdatesConfig) GetCheckInterval() time.Duration {
	if c.CheckInterval == "" {
		return 6 * time.Hour
	}
	duration, err := time.ParseDuration(c.CheckInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return duration
}

// ExpandEnvVars expands environment variables in config strings
func (c *Config) ExpandEnvVars() {
	c.API.Token = os.ExpandEnv(c.API.Token)
}
