package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// STACKFORGE_PROVIDERS_GOOGLE_API_KEY.
const EnvPrefix = "STACKFORGE"

// DefaultDir returns the per-user data directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".stackforge"
	}
	return filepath.Join(home, ".stackforge")
}

// Load reads configuration. Priority: environment > file > defaults.
// An empty path means <DefaultDir>/config.yaml, which may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	optional := false
	if path == "" {
		path = filepath.Join(DefaultDir(), "config.yaml")
		optional = true
	}
	if err := loadConfigFile(v, path, optional); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		cfg.Storage.Dir = DefaultDir()
	}
	return &cfg, nil
}

// loadConfigFile reads a YAML file, expands ${VAR:default} placeholders and
// merges it into v.
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnv(string(content))
	if err := v.MergeConfig(strings.NewReader(expanded)); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// expandEnv replaces ${VAR} and ${VAR:default}. Unset variables without a
// default are left as-is.
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		sub := envPlaceholder.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(sub[1]); ok {
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stackforge")
	v.SetDefault("app.env", "development")

	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.history_limit", 50)

	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "warn")

	v.SetDefault("providers.timeout", "180s")
	v.SetDefault("providers.google.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("providers.google.api_key", "")
	v.SetDefault("providers.google.model", "gemini-2.5-flash")
	v.SetDefault("providers.google.referer", "")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai")
	v.SetDefault("providers.openrouter.api_key", "")
	v.SetDefault("providers.openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("providers.openrouter.referer", "https://github.com/saeedalam/stackforge")

	v.SetDefault("server.addr", "127.0.0.1:8787")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "300s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "stderr")
}
