package compaction

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pilot/internal/provider"
)

const summaryPrompt = `Summarize the following desktop automation history concisely, preserving the information needed to continue the task. Focus on:
1. The goal being pursued and overall progress
2. Actions already performed and their outcomes
3. The current state of the screen and open applications
4. Anything that failed and why, plus remaining steps

History to summarize:
%s

Provide a concise summary:`

// Compactor compresses conversation history by summarizing older turns.
type Compactor struct {
	config   Config
	provider provider.Provider
	counter  *TokenCounter

	mu    sync.Mutex
	count map[string]int // session key → compression count
}

// NewCompactor creates a new Compactor.
func NewCompactor(config Config, prov provider.Provider) *Compactor {
	return &Compactor{
		config:   config,
		provider: prov,
		counter:  NewTokenCounter(),
		count:    make(map[string]int),
	}
}

// CompressionCount returns how many times a session has been compressed.
func (c *Compactor) CompressionCount(sessionKey string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count[sessionKey]
}

// RecordCompression increments the compression count for a session.
func (c *Compactor) RecordCompression(sessionKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count[sessionKey]++
}

// NeedsCompression reports whether the message history exceeds the
// configured token threshold.
func (c *Compactor) NeedsCompression(messages []provider.Message) bool {
	return c.counter.EstimateMessages(messages) > c.config.TokenThreshold
}

// Compress summarizes the older prefix of the history into a single
// synthetic assistant message and returns [summary, ...recent]. The most
// recent KeepRecentCount messages are returned unchanged, and tool results
// are never separated from the assistant turn that requested them.
func (c *Compactor) Compress(ctx context.Context, messages []provider.Message) ([]provider.Message, error) {
	if c.provider == nil {
		return nil, ErrNoProvider
	}

	systemMsgs, convMsgs := c.separateMessages(messages)

	if len(convMsgs) <= c.config.KeepRecentCount {
		return messages, ErrMessagesTooShort
	}

	split := len(convMsgs) - c.config.KeepRecentCount
	split = c.adjustSplit(convMsgs, split)
	if split <= 0 {
		return messages, ErrMessagesTooShort
	}

	keptMsgs := convMsgs[split:]
	toCompress := convMsgs[:split]

	chunks := c.chunkMessages(toCompress)

	var summaries []string
	for _, chunk := range chunks {
		summary, err := c.summarizeChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSummaryFailed, err)
		}
		summaries = append(summaries, summary)
	}

	finalSummary := strings.Join(summaries, "\n\n")

	result := make([]provider.Message, 0, len(systemMsgs)+1+len(keptMsgs))
	result = append(result, systemMsgs...)
	if finalSummary != "" {
		result = append(result, provider.Message{
			Role:    provider.RoleAssistant,
			Content: fmt.Sprintf("[Previous conversation summary]\n%s", finalSummary),
		})
	}
	result = append(result, keptMsgs...)

	return result, nil
}

// CompressWithFallback attempts Compress and falls back to truncation on error.
func (c *Compactor) CompressWithFallback(ctx context.Context, messages []provider.Message) []provider.Message {
	result, err := c.Compress(ctx, messages)
	if err == nil {
		return result
	}

	return c.truncate(messages)
}

// separateMessages splits messages into system and conversation messages.
func (c *Compactor) separateMessages(messages []provider.Message) ([]provider.Message, []provider.Message) {
	var systemMsgs, convMsgs []provider.Message
	for _, msg := range messages {
		if msg.Role == provider.RoleSystem {
			systemMsgs = append(systemMsgs, msg)
		} else {
			convMsgs = append(convMsgs, msg)
		}
	}
	return systemMsgs, convMsgs
}

// adjustSplit moves the split point back so the kept tail never starts with
// tool results whose calling assistant turn would land in the summary.
func (c *Compactor) adjustSplit(msgs []provider.Message, split int) int {
	for split > 0 && msgs[split].Role == provider.RoleTool {
		split--
	}
	return split
}

// chunkMessages splits messages into chunks based on token limit.
func (c *Compactor) chunkMessages(messages []provider.Message) [][]provider.Message {
	if len(messages) == 0 {
		return nil
	}

	var chunks [][]provider.Message
	var currentChunk []provider.Message
	currentTokens := 0

	for _, msg := range messages {
		msgTokens := c.counter.EstimateMessages([]provider.Message{msg})
		if currentTokens+msgTokens > c.config.ChunkMaxTokens && len(currentChunk) > 0 {
			chunks = append(chunks, currentChunk)
			currentChunk = nil
			currentTokens = 0
		}
		currentChunk = append(currentChunk, msg)
		currentTokens += msgTokens
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, currentChunk)
	}

	return chunks
}

// summarizeChunk generates a summary for a chunk of messages.
func (c *Compactor) summarizeChunk(ctx context.Context, chunk []provider.Message) (string, error) {
	var sb strings.Builder
	for _, msg := range chunk {
		sb.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}

	prompt := fmt.Sprintf(summaryPrompt, sb.String())

	req := provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: prompt},
		},
		MaxTokens: c.config.SummaryMaxTokens,
	}

	resp, err := c.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}

	return resp.Content, nil
}

// truncate performs simple truncation keeping recent messages.
func (c *Compactor) truncate(messages []provider.Message) []provider.Message {
	systemMsgs, convMsgs := c.separateMessages(messages)

	systemTokens := c.counter.EstimateMessages(systemMsgs)
	availableTokens := c.config.TokenThreshold - systemTokens
	if availableTokens < 0 {
		availableTokens = 1000
	}

	var keptMsgs []provider.Message
	for i := len(convMsgs) - 1; i >= 0; i-- {
		msg := convMsgs[i]
		msgTokens := c.counter.EstimateMessages([]provider.Message{msg})
		if c.counter.EstimateMessages(keptMsgs)+msgTokens > availableTokens {
			break
		}
		keptMsgs = append([]provider.Message{msg}, keptMsgs...)
	}

	result := make([]provider.Message, 0, len(systemMsgs)+len(keptMsgs))
	result = append(result, systemMsgs...)
	result = append(result, keptMsgs...)
	return result
}
