// Package config loads stackforge configuration from an optional YAML file,
// environment variables and built-in defaults.
package config

import "time"

// Config is the root configuration
type Config struct {
	App       AppConfig       `yaml:"app" mapstructure:"app"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Tracing   TracingConfig   `yaml:"tracing" mapstructure:"tracing"`
}

// AppConfig holds application identity
type AppConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Env  string `yaml:"env" mapstructure:"env"`
}

// StorageConfig selects where history and settings live
type StorageConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	Backend      string `yaml:"backend" mapstructure:"backend"` // json, sqlite
	HistoryLimit int    `yaml:"history_limit" mapstructure:"history_limit"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"` // dev, prod
	Level string `yaml:"level" mapstructure:"level"`
}

// ProvidersConfig holds endpoints and fallback credentials for the LLM providers
type ProvidersConfig struct {
	Timeout    time.Duration  `yaml:"timeout" mapstructure:"timeout"`
	Google     EndpointConfig `yaml:"google" mapstructure:"google"`
	OpenRouter EndpointConfig `yaml:"openrouter" mapstructure:"openrouter"`
}

// EndpointConfig describes one provider endpoint
type EndpointConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	Model   string `yaml:"model" mapstructure:"model"`
	Referer string `yaml:"referer" mapstructure:"referer"`
}

// ServerConfig configures the local HTTP API
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// TracingConfig toggles OpenTelemetry span output
type TracingConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Output  string `yaml:"output" mapstructure:"output"` // stderr or a file path
}
