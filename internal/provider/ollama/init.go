package ollama

import (
	"time"

	"pilot/internal/provider"
	"pilot/pkg/logger"

	"github.com/spf13/viper"
)

// Register registers the Ollama provider with the global registry.
// This should be called during application initialization.
func Register() {
	cfg := Config{
		Endpoint:  viper.GetString("provider.endpoint"),
		Model:     viper.GetString("provider.model"),
		Timeout:   time.Duration(viper.GetInt("provider.timeout.seconds")) * time.Second,
		KeepAlive: viper.GetString("provider.keep.alive"),
	}

	// Apply defaults
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeepAlive == "" {
		cfg.KeepAlive = DefaultKeepAlive
	}

	p := New(cfg)
	provider.Register(p)

	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("model", cfg.Model).
		Msg("Ollama provider registered")
}
