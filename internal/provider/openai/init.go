package openai

import (
	"time"

	"pilot/internal/provider"
	"pilot/pkg/logger"

	"github.com/spf13/viper"
)

// Register registers the OpenAI provider with the global registry,
// reading its settings from the loaded configuration.
func Register() {
	cfg := Config{
		APIKey:    viper.GetString("provider.api.key"),
		Endpoint:  viper.GetString("provider.endpoint"),
		Model:     viper.GetString("provider.model"),
		MaxTokens: viper.GetInt("provider.max.tokens"),
		Timeout:   time.Duration(viper.GetInt("provider.timeout.seconds")) * time.Second,
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	provider.Register(New(cfg))

	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("model", cfg.Model).
		Msg("OpenAI provider registered")
}
