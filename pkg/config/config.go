// Package config loads the herald server configuration.
//
// Configuration comes from an optional YAML file layered over Default and
// is validated before use. Command-line flags are applied by the caller
// after Load and checked again with Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/herald/pkg/bot"
	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/manager"
)

// Config is the herald server configuration
type Config struct {
	// APIAddr is the listen address of the HTTP API
	APIAddr string `yaml:"api_addr" validate:"required,hostname_port"`

	// DataDir holds the bbolt database
	DataDir string `yaml:"data_dir" validate:"required"`

	// LogSize is the number of diagnostic lines kept per bot
	LogSize int `yaml:"log_size" validate:"min=1,max=10000"`

	// Workers bounds the shared task pool
	Workers int `yaml:"workers" validate:"min=1,max=256"`

	// ReadOnly rejects every mutating API request
	ReadOnly bool `yaml:"read_only"`

	// SessionTimeout bounds a single call into the session engine
	SessionTimeout time.Duration `yaml:"session_timeout" validate:"gte=1s"`

	UpdateTime UpdateTimeConfig `yaml:"update_time"`

	Log LogConfig `yaml:"log"`
}

// UpdateTimeConfig holds the periodic task intervals
type UpdateTimeConfig struct {
	Session time.Duration `yaml:"session" validate:"gte=1s"`
	Friend  time.Duration `yaml:"friend" validate:"gte=1s"`
	Stats   time.Duration `yaml:"stats" validate:"gte=1s"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

var validate = validator.New()

// Default returns the default configuration
func Default() *Config {
	return &Config{
		APIAddr:        "127.0.0.1:8080",
		DataDir:        "./herald-data",
		LogSize:        100,
		Workers:        8,
		SessionTimeout: 30 * time.Second,
		UpdateTime: UpdateTimeConfig{
			Session: 30 * time.Second,
			Friend:  20 * time.Second,
			Stats:   60 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field against its constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() log.Level {
	return log.Level(c.Log.Level)
}

// ManagerConfig converts the file settings into registry settings
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		Workers: c.Workers,
		Bot: bot.Config{
			LogSize:         c.LogSize,
			SessionInterval: c.UpdateTime.Session,
			FriendInterval:  c.UpdateTime.Friend,
			StatsInterval:   c.UpdateTime.Stats,
			Timeout:         c.SessionTimeout,
		},
	}
}
