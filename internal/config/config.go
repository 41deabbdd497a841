package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"hydra/internal/logging"
)

// Config is the process configuration, loaded from defaults, an optional
// config file, and HYDRA_* environment variables (in increasing precedence).
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Adapter AdapterConfig `mapstructure:"adapter"`
	Solver  SolverConfig  `mapstructure:"solver"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	EnableCORS bool   `mapstructure:"enable_cors"`
	Debug      bool   `mapstructure:"debug"`
}

// AdapterConfig configures the reasoning service connection.
type AdapterConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // seconds
	Referer string `mapstructure:"referer"`
	Title   string `mapstructure:"title"`
}

// SolverConfig tunes orchestration policy.
type SolverConfig struct {
	DefaultAgents    int   `mapstructure:"default_agents"`
	MaxInflightCalls int64 `mapstructure:"max_inflight_calls"`
	RetainedTasks    int   `mapstructure:"retained_tasks"`
}

// LogConfig controls the process log level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.debug", false)

	v.SetDefault("adapter.base_url", "")
	v.SetDefault("adapter.api_key", "")
	v.SetDefault("adapter.model", "google/gemini-2.5-pro")
	v.SetDefault("adapter.timeout", 120)
	v.SetDefault("adapter.referer", "http://localhost:3000")
	v.SetDefault("adapter.title", "Hydra Solver")

	v.SetDefault("solver.default_agents", 10)
	v.SetDefault("solver.max_inflight_calls", 0)
	v.SetDefault("solver.retained_tasks", 256)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. An explicit path must exist; otherwise
// hydra-config.yaml is searched in the working directory and $HOME, and a
// missing file is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HYDRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("hydra-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &config, nil
}

// LogLevel resolves the configured log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Log.Level)
}
