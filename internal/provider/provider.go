// Package provider defines the multimodal LLM provider interface and types.
package provider

import "context"

// Provider defines the interface for multimodal chat providers.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Models returns the list of supported models.
	Models() []string

	// Chat sends a chat request and blocks until the full response arrives.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
