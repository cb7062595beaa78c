package agent

import (
	"context"

	"pilot/internal/provider"
)

// modelClient is the thin adapter between the loop and the provider: it
// pins the decision schema onto every request so providers that support
// structured output guarantee a parseable DecisionBundle.
type modelClient struct {
	provider provider.Provider
	model    string
}

func newModelClient(p provider.Provider, model string) *modelClient {
	return &modelClient{provider: p, model: model}
}

// Decide sends one decision request. tools may be nil when no tools are
// registered.
func (m *modelClient) Decide(ctx context.Context, messages []provider.Message, tools []provider.Tool) (*provider.ChatResponse, error) {
	req := provider.ChatRequest{
		Model:    m.model,
		Messages: messages,
		Tools:    tools,
		ResponseFormat: &provider.ResponseFormat{
			Type:   provider.FormatJSONSchema,
			Name:   "decision_bundle",
			Schema: DecisionSchema(),
			Strict: true,
		},
	}

	return m.provider.Chat(ctx, req)
}

// Summarize asks the model for a free-text completion, used by history
// compaction. No schema is attached.
func (m *modelClient) Summarize(ctx context.Context, messages []provider.Message) (*provider.ChatResponse, error) {
	return m.provider.Chat(ctx, provider.ChatRequest{
		Model:    m.model,
		Messages: messages,
	})
}
