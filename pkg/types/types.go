package types

import "strings"

// =============================================================================
// BLUEPRINT TYPES
// =============================================================================

// FileRecord is one generated or imported file
type FileRecord struct {
	Path     string `json:"path"`     // Relative, posix-style, no leading "/"
	Content  string `json:"content"`  // UTF-8 text, never contains NUL
	Language string `json:"language"` // Canonical language tag
}

// Blueprint is the normalized result of a generate or enhance request
type Blueprint struct {
	ProjectName string       `json:"projectName"`
	Description string       `json:"description"`
	Structure   string       `json:"structure"` // Human-readable tree, not parsed
	Files       []FileRecord `json:"files"`
}

// FileCount returns the number of files in the blueprint
func (b *Blueprint) FileCount() int {
	if b == nil {
		return 0
	}
	return len(b.Files)
}

// =============================================================================
// HISTORY TYPES
// =============================================================================

// HistoryItem is a stored generation or enhancement result
type HistoryItem struct {
	ID          string    `json:"id"`
	Timestamp   int64     `json:"timestamp"` // Epoch milliseconds
	ProjectName string    `json:"projectName"`
	Blueprint   Blueprint `json:"blueprint"`
}

// =============================================================================
// PROVIDER & SETTINGS TYPES
// =============================================================================

// Provider tags
const (
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
)

// ProviderConfig is the configuration of the active provider for one request
type ProviderConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

// ProviderCredentials holds the stored credentials of a single provider
type ProviderCredentials struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// Settings are the persisted user preferences
type Settings struct {
	ActiveProvider string              `json:"activeProvider"`
	Google         ProviderCredentials `json:"google"`
	OpenRouter     ProviderCredentials `json:"openrouter"`
	DefaultStack   string              `json:"defaultStack,omitempty"`
}

// DefaultSettings returns the settings used when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		ActiveProvider: ProviderGoogle,
		DefaultStack:   "vanilla",
	}
}

// Active returns the provider configuration selected by ActiveProvider.
// Unknown tags are passed through with empty credentials so the provider
// layer can reject them.
func (s Settings) Active() ProviderConfig {
	tag := strings.ToLower(strings.TrimSpace(s.ActiveProvider))
	if tag == "" {
		tag = ProviderGoogle
	}
	switch tag {
	case ProviderGoogle:
		return ProviderConfig{Provider: tag, APIKey: s.Google.APIKey, Model: s.Google.Model}
	case ProviderOpenRouter:
		return ProviderConfig{Provider: tag, APIKey: s.OpenRouter.APIKey, Model: s.OpenRouter.Model}
	default:
		return ProviderConfig{Provider: tag}
	}
}

// Credentials returns a pointer to the stored credentials for a provider tag,
// or nil for unknown tags.
func (s *Settings) Credentials(provider string) *ProviderCredentials {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderGoogle:
		return &s.Google
	case ProviderOpenRouter:
		return &s.OpenRouter
	default:
		return nil
	}
}

// Redacted returns a copy with API keys masked for display
func (s Settings) Redacted() Settings {
	s.Google.APIKey = maskKey(s.Google.APIKey)
	s.OpenRouter.APIKey = maskKey(s.OpenRouter.APIKey)
	return s
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
