package config

import (
	"strings"

	"github.com/saeedalam/stackforge/pkg/types"
)

// SeedSettings fills provider credentials that stored settings leave empty
// with the keys and models from configuration. Stored values always win.
func (c *Config) SeedSettings(s types.Settings) types.Settings {
	seed := func(creds *types.ProviderCredentials, ep EndpointConfig) {
		if strings.TrimSpace(creds.APIKey) == "" {
			creds.APIKey = strings.TrimSpace(ep.APIKey)
		}
		if strings.TrimSpace(creds.Model) == "" {
			creds.Model = strings.TrimSpace(ep.Model)
		}
	}
	seed(&s.Google, c.Providers.Google)
	seed(&s.OpenRouter, c.Providers.OpenRouter)
	if strings.TrimSpace(s.ActiveProvider) == "" {
		s.ActiveProvider = types.ProviderGoogle
	}
	return s
}
