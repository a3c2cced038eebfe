package llm

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// API provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultProvider is used when none is configured.
const DefaultProvider = ProviderGemini

// SupportedProviders lists every provider name New accepts.
var SupportedProviders = []string{
	ProviderGemini,
	ProviderOpenAI,
	ProviderClaudeCLI,
	ProviderCodexCLI,
	ProviderGeminiCLI,
}

// Settings select and configure a provider.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Retries  int
	Timeout  time.Duration
}

// IsSupported reports whether name is a known provider.
func IsSupported(name string) bool {
	return slices.Contains(SupportedProviders, name)
}

// RequiresAPIKey reports whether the provider needs an API key from the
// environment. CLI providers manage their own credentials.
func RequiresAPIKey(provider string) bool {
	return provider == ProviderGemini || provider == ProviderOpenAI
}

// DefaultModel returns the model used for provider when none is configured.
// CLI providers return "" to defer to the CLI's own default.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	default:
		return ""
	}
}

// New builds the generator for s.Provider wrapped with retry and timeout.
func New(s Settings) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if provider == "" {
		provider = DefaultProvider
	}

	var inner Generator
	switch provider {
	case ProviderGemini:
		inner = NewGeminiWithClient(s.Model, s.APIKey, s.BaseURL, &http.Client{})
	case ProviderOpenAI:
		inner = NewOpenAI(s.Model, s.APIKey, s.BaseURL)
	case ProviderClaudeCLI, ProviderCodexCLI, ProviderGeminiCLI:
		cmd, err := NewCommand(provider, s.Model)
		if err != nil {
			return nil, err
		}
		inner = cmd
	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: %s)", s.Provider, strings.Join(SupportedProviders, ", "))
	}

	if RequiresAPIKey(provider) && s.APIKey == "" {
		return nil, fmt.Errorf("provider %s: %w", provider, ErrNoAPIKey)
	}

	retries := s.Retries
	if retries == 0 {
		retries = -1
	}
	return NewResilientWithConfig(inner, ResilienceConfig{
		MaxRetries: retries,
		Timeout:    s.Timeout,
	}), nil
}
