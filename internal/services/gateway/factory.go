package gateway

import (
	"fmt"
	"time"

	"ticket-sales/internal/services/gateway/clip"
)

// New creates the gateway for cfg.Provider.
func New(cfg Config) (Gateway, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	switch cfg.Provider {
	case ProviderClip:
		client, err := clip.New(&clip.Config{
			BaseURL:   cfg.BaseURL,
			AuthToken: cfg.AuthToken,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("gateway.New: %w", err)
		}
		return NewClipAdapter(client, cfg.Timeout), nil

	case ProviderSandbox:
		return NewSandbox(), nil

	default:
		return nil, fmt.Errorf("gateway.New: unsupported provider %q", cfg.Provider)
	}
}

// SupportedProviders lists the providers New accepts.
func SupportedProviders() []Provider {
	return []Provider{ProviderClip, ProviderSandbox}
}
