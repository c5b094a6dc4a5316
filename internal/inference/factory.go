package inference

import (
	"fmt"

	"symptomguide/internal/config"
	"symptomguide/internal/logging"
)

// NewProviderFromConfig constructs the configured inference provider.
func NewProviderFromConfig(cfg *config.Config) (Provider, error) {
	timeout := cfg.GetInferenceTimeout()

	switch cfg.Inference.Provider {
	case "groq":
		gc := DefaultGroqConfig()
		gc.Timeout = timeout
		if cfg.Inference.BaseURL != "" {
			gc.BaseURL = cfg.Inference.BaseURL
		}
		if cfg.Inference.Model != "" {
			gc.Model = cfg.Inference.Model
		}
		if cfg.Inference.VisionModel != "" {
			gc.VisionModel = cfg.Inference.VisionModel
		}
		logging.Boot("inference provider: groq (model=%s vision=%s)", gc.Model, gc.VisionModel)
		return NewGroqClient(gc), nil

	case "gemini":
		gc := DefaultGeminiConfig()
		gc.Timeout = timeout
		if cfg.Inference.BaseURL != "" {
			gc.BaseURL = cfg.Inference.BaseURL
		}
		if cfg.Inference.Model != "" {
			gc.Model = cfg.Inference.Model
		}
		if cfg.Inference.VisionModel != "" {
			gc.VisionModel = cfg.Inference.VisionModel
		}
		logging.Boot("inference provider: gemini (model=%s)", gc.Model)
		return NewGeminiClient(gc), nil

	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Inference.Provider)
	}
}

// NewClientFromConfig builds the credential pool and the retrying client
// from configuration. Returns ErrNoCredentials when no valid credential is
// configured.
func NewClientFromConfig(cfg *config.Config) (*Client, error) {
	provider, err := NewProviderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(cfg.ValidCredentials(), cfg.Inference.UsageLimit, cfg.GetCooldownPeriod())
	if err != nil {
		return nil, err
	}

	return NewClient(pool, provider, ClientOptions{
		MaxAttempts: cfg.Inference.MaxAttempts,
		Backoff:     cfg.GetRetryBackoff(),
		CallTimeout: cfg.GetInferenceTimeout(),
	}), nil
}
