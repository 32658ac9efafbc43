// Package config loads netaudit configuration from file and environment
// and builds the application logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// JumpHost holds the SSH bastion coordinates. Every device session is
// tunneled through this single transport.
type JumpHost struct {
	Address  string `mapstructure:"address"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Addr returns the jump host dial address as host:port.
func (j *JumpHost) Addr() string {
	port := j.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", j.Address, port)
}

// Config holds the full run configuration.
type Config struct {
	JumpHost JumpHost `mapstructure:"jump_host"`

	Workers        int           `mapstructure:"workers"`
	Attempts       int           `mapstructure:"attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	RunDeadline    time.Duration `mapstructure:"run_deadline"`

	// ChannelRate caps device channel opens per second through the shared
	// jump transport. Zero disables the limiter.
	ChannelRate float64 `mapstructure:"channel_rate"`

	Inventory string   `mapstructure:"inventory"`
	Layers    []string `mapstructure:"layers"`
	Devices   []string `mapstructure:"devices"`
	Groups    []string `mapstructure:"groups"`

	DatabasePath  string `mapstructure:"database_path"`
	MetricsListen string `mapstructure:"metrics_listen"`
	PingCheck     bool   `mapstructure:"ping_check"`
}

// Load reads configuration from the given file (or the default search
// paths when empty) with environment variable overrides.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("workers", 4)
	v.SetDefault("attempts", 3)
	v.SetDefault("backoff", "2s")
	v.SetDefault("connect_timeout", "15s")
	v.SetDefault("command_timeout", "30s")
	v.SetDefault("run_deadline", "0")
	v.SetDefault("channel_rate", 0.0)
	v.SetDefault("jump_host.port", 22)
	v.SetDefault("database_path", "./netaudit.db")
	v.SetDefault("ping_check", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("netaudit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/netaudit")
	}

	// Environment variable support: NETAUDIT_WORKERS=8,
	// NETAUDIT_JUMP_HOST_ADDRESS=10.0.0.1.
	v.SetEnvPrefix("NETAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; flags and env may supply everything.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !asConfigFileNotFound(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

// Parse unmarshals and validates the typed configuration.
func Parse(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks constraints the executor and connection manager rely on.
func (c *Config) Validate() error {
	if c.JumpHost.Address == "" {
		return fmt.Errorf("jump_host.address is required")
	}
	if c.JumpHost.Username == "" {
		return fmt.Errorf("jump_host.username is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.Attempts < 1 {
		return fmt.Errorf("attempts must be >= 1, got %d", c.Attempts)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	return nil
}

func asConfigFileNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}
