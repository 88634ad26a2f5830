package llm

import (
	"errors"
	"os"

	"github.com/fyrsmithlabs/devforge/internal/config"
)

// ErrNoCredential is returned when no AI provider credential can be found.
var ErrNoCredential = errors.New("no AI provider credential found; set GEMINI_API_KEY, AI_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY")

// Provider names accepted in llm.provider.
const (
	ProviderGoogleAI  = "googleai"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// providerEnv lists the environment variables consulted per provider, in
// lookup order.
var providerEnv = []struct {
	provider string
	vars     []string
}{
	{ProviderGoogleAI, []string{"GEMINI_API_KEY", "AI_API_KEY"}},
	{ProviderAnthropic, []string{"ANTHROPIC_API_KEY"}},
	{ProviderOpenAI, []string{"OPENAI_API_KEY"}},
}

// Credential is a resolved provider and API key.
type Credential struct {
	Provider string
	APIKey   config.Secret
	// Source is "config" or the environment variable the key came from.
	Source string
}

// ResolveCredential finds the API key to use. An explicit llm.api_key wins,
// then the environment variables of the configured provider, then those of
// the other providers in the order Google AI, Anthropic, OpenAI.
func ResolveCredential(cfg config.LLMConfig) (Credential, error) {
	return resolveCredential(cfg, os.Getenv)
}

func resolveCredential(cfg config.LLMConfig, getenv func(string) string) (Credential, error) {
	if cfg.APIKey.IsSet() {
		return Credential{Provider: cfg.Provider, APIKey: cfg.APIKey, Source: "config"}, nil
	}

	for _, pe := range providerEnv {
		if pe.provider != cfg.Provider {
			continue
		}
		if c, ok := lookupEnv(pe.provider, pe.vars, getenv); ok {
			return c, nil
		}
	}
	for _, pe := range providerEnv {
		if c, ok := lookupEnv(pe.provider, pe.vars, getenv); ok {
			return c, nil
		}
	}
	return Credential{}, ErrNoCredential
}

func lookupEnv(provider string, vars []string, getenv func(string) string) (Credential, bool) {
	for _, name := range vars {
		if v := getenv(name); v != "" {
			return Credential{Provider: provider, APIKey: config.Secret(v), Source: name}, true
		}
	}
	return Credential{}, false
}
