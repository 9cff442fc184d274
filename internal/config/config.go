// Package config loads the packaging worker's configuration from a
// YAML file, environment variable overrides, and built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Queue        QueueConfig        `mapstructure:"queue"`
	TableService TableServiceConfig `mapstructure:"tableservice"`
	ObjectStore  ObjectStoreConfig  `mapstructure:"objectstore"`
	Workspace    WorkspaceConfig    `mapstructure:"workspace"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// QueueConfig governs how the request-intake loop polls its backing
// store for new packaging requests.
type QueueConfig struct {
	Path         string        `mapstructure:"path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// TableServiceConfig points at the remote table/query/file-handle API.
type TableServiceConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

// ObjectStoreConfig names the bucket archives are uploaded to and the
// signing identity presigned URLs are issued under.
type ObjectStoreConfig struct {
	Bucket                string        `mapstructure:"bucket"`
	ServiceAccountID      string        `mapstructure:"service_account_id"`
	ServiceAccountKeyPath string        `mapstructure:"service_account_key_path"`
	URLExpiration         time.Duration `mapstructure:"url_expiration"`
}

// WorkspaceConfig governs the local working area and task concurrency.
type WorkspaceConfig struct {
	BaseDir    string `mapstructure:"base_dir"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from configPath and environment variable
// overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.path", "data/requests.db")
	v.SetDefault("queue.poll_interval", 5*time.Second)

	v.SetDefault("tableservice.poll_interval", 2*time.Second)
	v.SetDefault("tableservice.max_poll_attempts", 60)

	v.SetDefault("objectstore.url_expiration", 24*time.Hour)

	v.SetDefault("workspace.base_dir", "data/workspace")
	v.SetDefault("workspace.pool_size", 4)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables that carry credentials or
// environment-specific overrides.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("tableservice.base_url", "TABLESERVICE_BASE_URL")
	v.BindEnv("tableservice.api_key", "TABLESERVICE_API_KEY")
	v.BindEnv("objectstore.bucket", "OBJECTSTORE_BUCKET")
	v.BindEnv("objectstore.service_account_id", "OBJECTSTORE_SERVICE_ACCOUNT_ID")
	v.BindEnv("objectstore.service_account_key_path", "OBJECTSTORE_SERVICE_ACCOUNT_KEY_PATH")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TableService.BaseURL == "" {
		return fmt.Errorf("tableservice.base_url is required")
	}
	if c.TableService.APIKey == "" {
		return fmt.Errorf("tableservice.api_key is required")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("objectstore.bucket is required")
	}
	if c.ObjectStore.ServiceAccountID == "" {
		return fmt.Errorf("objectstore.service_account_id is required")
	}
	if c.ObjectStore.ServiceAccountKeyPath == "" {
		return fmt.Errorf("objectstore.service_account_key_path is required")
	}
	if c.Workspace.PoolSize <= 0 {
		return fmt.Errorf("workspace.pool_size must be positive")
	}
	return nil
}
