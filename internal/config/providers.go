package config

import (
	"os"
	"time"
)

type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one completion backend. Type is one of
// openai, anthropic or gemini; unknown types are treated as OpenAI-compatible.
type ProviderConfig struct {
	Type       string            `yaml:"type"`
	BaseURL    string            `yaml:"base_url"`
	APIKey     string            `yaml:"api_key"`
	APIVersion string            `yaml:"api_version,omitempty"`
	Timeout    time.Duration     `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers,omitempty"`
}

// applyKeyFallbacks fills an empty anthropic API key from CLAUDE_API_KEY.
func (p *ProvidersConfig) applyKeyFallbacks() {
	for name, prov := range p.Providers {
		if prov.Type == "anthropic" && prov.APIKey == "" {
			prov.APIKey = os.Getenv("CLAUDE_API_KEY")
			p.Providers[name] = prov
		}
	}
}
