// Package config handles configuration loading for the crew engine.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default per-user values.
type DefaultsConfig struct {
	// WindowSize is the conversation context window cap.
	WindowSize int `mapstructure:"window_size"`
	// StepCost is the credit cost charged per step when the agent
	// declares none.
	StepCost int64 `mapstructure:"step_cost"`
	// InitialBalance is granted to a new account on its first top-up
	// command without an amount.
	InitialBalance int64 `mapstructure:"initial_balance"`
}

// WorkflowConfig holds executor settings.
type WorkflowConfig struct {
	// MaxParallel is the maximum number of concurrently running steps.
	MaxParallel int `mapstructure:"max_parallel"`
	// MaxHops bounds inter-agent routing cascades per originating request.
	MaxHops int `mapstructure:"max_hops"`
}

// GatewayConfig holds model-call settings.
type GatewayConfig struct {
	// CallTimeout is the per-call wall-clock timeout.
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	// MaxAttempts bounds transient-failure retries.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.crew.yaml in current directory or parent)
// 3. User config (~/.config/crew/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("defaults.window_size", 10)
	v.SetDefault("defaults.step_cost", 1)
	v.SetDefault("defaults.initial_balance", 100)

	v.SetDefault("workflow.max_parallel", 3)
	v.SetDefault("workflow.max_hops", 4)

	v.SetDefault("gateway.call_timeout", "2m")
	v.SetDefault("gateway.max_attempts", 3)
}

// getUserConfigDir returns the XDG config directory for crew.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crew")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crew")
	}
	return filepath.Join(home, ".config", "crew")
}

// findProjectConfig searches for .crew.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".crew.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			WindowSize:     10,
			StepCost:       1,
			InitialBalance: 100,
		},
		Workflow: WorkflowConfig{
			MaxParallel: 3,
			MaxHops:     4,
		},
		Gateway: GatewayConfig{
			CallTimeout: 2 * time.Minute,
			MaxAttempts: 3,
		},
	}
}
