// Package provider calls the remote LLM backends that produce blueprints.
// Each backend performs one unary request per Call and returns the raw text
// payload; parsing is left to the normalize package.
package provider

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/saeedalam/stackforge/internal/apperr"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/pkg/types"
)

// Provider is one remote LLM backend
type Provider interface {
	Name() string
	Call(ctx context.Context, systemInstruction, userPrompt string) (string, error)
}

// Factory builds the provider for a request's configuration
type Factory func(cfg types.ProviderConfig) (Provider, error)

const (
	defaultGoogleBaseURL     = "https://generativelanguage.googleapis.com"
	defaultGoogleModel       = "gemini-2.5-flash"
	defaultOpenRouterBaseURL = "https://openrouter.ai"
	defaultOpenRouterModel   = "openai/gpt-4o-mini"
	defaultTimeout           = 180 * time.Second
)

// Options are shared by all backends
type Options struct {
	Endpoints  config.ProvidersConfig
	HTTPClient *http.Client
	Metrics    *Metrics
	Log        *logger.Logger
}

// New returns the backend selected by cfg.Provider. A missing API key is
// rejected here, before any request is built.
func New(cfg types.ProviderConfig, opts Options) (Provider, error) {
	tag := strings.ToLower(strings.TrimSpace(cfg.Provider))
	apiKey := strings.TrimSpace(cfg.APIKey)

	switch tag {
	case types.ProviderGoogle, types.ProviderOpenRouter:
	default:
		return nil, apperr.Newf(apperr.KindPrecondition, "unknown provider %q", cfg.Provider)
	}
	if apiKey == "" {
		return nil, apperr.Newf(apperr.KindPrecondition, "missing API key for provider %q", tag)
	}

	opts = opts.withDefaults()
	base := baseClient{
		apiKey:  apiKey,
		timeout: opts.Endpoints.Timeout,
		http:    opts.HTTPClient,
		metrics: opts.Metrics,
		log:     opts.Log.With("provider", tag),
	}

	switch tag {
	case types.ProviderGoogle:
		ep := opts.Endpoints.Google
		base.baseURL = firstNonEmpty(ep.BaseURL, defaultGoogleBaseURL)
		base.model = firstNonEmpty(cfg.Model, ep.Model, defaultGoogleModel)
		return &Gemini{baseClient: base}, nil
	default:
		ep := opts.Endpoints.OpenRouter
		base.baseURL = firstNonEmpty(ep.BaseURL, defaultOpenRouterBaseURL)
		base.model = firstNonEmpty(cfg.Model, ep.Model, defaultOpenRouterModel)
		return &OpenRouter{baseClient: base, referer: ep.Referer}, nil
	}
}

// NewFactory binds opts into a Factory
func NewFactory(opts Options) Factory {
	return func(cfg types.ProviderConfig) (Provider, error) {
		return New(cfg, opts)
	}
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = defaultHTTPClient()
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.Endpoints.Timeout <= 0 {
		o.Endpoints.Timeout = defaultTimeout
	}
	return o
}

func defaultHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return strings.TrimRight(s, "/")
		}
	}
	return ""
}
