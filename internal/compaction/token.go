package compaction

import (
	"pilot/internal/provider"
)

// TokenCounter estimates token counts for text and messages.
type TokenCounter struct{}

// NewTokenCounter creates a new TokenCounter.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// EstimateText estimates the token count for a given text.
// This uses a simple heuristic: approximately 4 characters per token.
// It is a lower bound; the exact tokenizer is model-specific.
func (tc *TokenCounter) EstimateText(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateMessages estimates the total token count for a slice of messages.
// It accounts for:
// - Content tokens
// - Role overhead (~4 tokens per message)
// - Tool call names and arguments
// Image attachments are not counted; the decision context carries at most
// one screenshot and its cost is on the provider side.
func (tc *TokenCounter) EstimateMessages(messages []provider.Message) int {
	total := 0
	for _, msg := range messages {
		total += tc.EstimateText(msg.Content)
		// Role, separators, etc.
		total += 4
		for _, toolCall := range msg.ToolCalls {
			total += tc.EstimateText(toolCall.Name)
			total += tc.EstimateText(toolCall.Arguments)
		}
	}
	return total
}
