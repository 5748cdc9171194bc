// Package config loads the application configuration and the redaction rule
// sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the redactor service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Security SecurityConfig `mapstructure:"security"`
	Rules    RulesConfig    `mapstructure:"rules"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// AnalysisConfig holds language model settings.
type AnalysisConfig struct {
	BaseURL               string  `mapstructure:"base_url"`
	APIKey                string  `mapstructure:"api_key"`
	Model                 string  `mapstructure:"model"`
	MaxConcurrentRequests int     `mapstructure:"max_concurrent_requests"`
	MaxCompletionTokens   int     `mapstructure:"max_completion_tokens"`
	MaxAttempts           int     `mapstructure:"max_attempts"`
	SpendBudget           float64 `mapstructure:"spend_budget"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
}

// VisionConfig holds image analysis settings.
type VisionConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig holds data directory settings.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	ArtifactsDir string `mapstructure:"artifacts_dir"`
	BadgerPath   string `mapstructure:"badger_path"`
}

// NotifyConfig holds completion webhook settings.
type NotifyConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// RulesConfig locates the redaction rules file.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from file, env, and defaults.
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.artifacts_dir", filepath.Join(dataDir, "artifacts"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("rules.path", filepath.Join(dataDir, "rules.yaml"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "redactor.yaml")
	}
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (REDACTOR_ANALYSIS_API_KEY, REDACTOR_SERVER_PORT, ...)
	v.SetEnvPrefix("REDACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)

	v.SetDefault("analysis.base_url", "https://api.openai.com/v1")
	v.SetDefault("analysis.model", "gpt-4.1-nano")
	v.SetDefault("analysis.max_concurrent_requests", 8)
	v.SetDefault("analysis.max_completion_tokens", 800)
	v.SetDefault("analysis.max_attempts", 5)
	v.SetDefault("analysis.timeout_seconds", 60)

	v.SetDefault("vision.timeout_seconds", 30)
	v.SetDefault("notify.timeout_seconds", 10)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "redactor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".local", "share", "redactor")
}

// loadEnvOverrides covers keys Viper's AutomaticEnv misses for fields it
// never saw in a file or default.
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Analysis.APIKey = getEnv("REDACTOR_ANALYSIS_API_KEY", cfg.Analysis.APIKey)
	cfg.Vision.APIKey = getEnv("REDACTOR_VISION_API_KEY", cfg.Vision.APIKey)
	cfg.Security.APIKey = getEnv("REDACTOR_SECURITY_API_KEY", cfg.Security.APIKey)
	cfg.Notify.WebhookURL = getEnv("REDACTOR_NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
}

func validate(cfg *Config) error {
	if cfg.Analysis.Model == "" {
		return fmt.Errorf("analysis.model is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}
	return nil
}
