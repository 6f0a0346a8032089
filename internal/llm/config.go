// Package llm wraps the language model used to score candidates.
package llm

import "os"

// ModelTier represents the capability level of a model.
type ModelTier string

const (
	// TierLite is for cheap classification-style calls.
	TierLite ModelTier = "lite"
	// TierStandard is used for candidate scoring.
	TierStandard ModelTier = "standard"
	// TierAdvanced is reserved for calls that need deeper reasoning.
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider.
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the Gemini configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: 0.1,
	}
}

// ConfigFromEnv returns DefaultConfig with SCORING_MODEL overriding the standard tier.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if m := os.Getenv("SCORING_MODEL"); m != "" {
		cfg = cfg.WithModel(TierStandard, m)
	}
	return cfg
}

// GetModel returns the model name for a tier, falling back to standard then lite.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of c with model set for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)+1),
		Temperature: c.Temperature,
	}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
