// Package openai implements the Provider interface for OpenAI-compatible
// chat completions APIs, including vision input and json_schema response
// format. Pointing Endpoint at any compatible gateway (GLM, DeepSeek,
// LM Studio, ...) works as long as the model accepts image content parts.
package openai

import (
	"encoding/json"
	"time"
)

// Default configuration values.
const (
	DefaultEndpoint  = "https://api.openai.com/v1"
	DefaultModel     = "gpt-4o"
	DefaultTimeout   = 5 * time.Minute
	DefaultMaxTokens = 4096
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey    string        `mapstructure:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
	}
}

// AvailableModels lists vision-capable models known to work.
var AvailableModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"o4-mini",
}

// --- OpenAI-compatible request/response types ---

// chatRequest represents an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float64        `json:"temperature,omitempty"`
	Tools          []chatTool      `json:"tools,omitempty"`
	ToolChoice     interface{}     `json:"tool_choice,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// responseFormat constrains model output.
type responseFormat struct {
	Type       string            `json:"type"` // "text" | "json_object" | "json_schema"
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

// jsonSchemaFormat carries the schema for type "json_schema".
type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

// chatMessage represents a message in OpenAI format.
// Supports both plain string content and multipart content (for vision).
type chatMessage struct {
	Role         string         `json:"-"`
	Content      *string        `json:"-"` // Normal string content
	ContentParts []contentPart  `json:"-"` // Multipart content (vision: text + images)
	ToolCalls    []chatToolCall `json:"-"`
	ToolCallID   string         `json:"-"`
}

// contentPart represents a part of multipart content (for vision/image support).
type contentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

// visionImageURL represents an image URL in multipart content.
type visionImageURL struct {
	URL string `json:"url"`
}

// MarshalJSON implements custom JSON marshaling for chatMessage.
// When ContentParts is set (vision mode), content is serialized as an array.
// Otherwise, content is serialized as a string or null.
func (m chatMessage) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role       string         `json:"role"`
		Content    interface{}    `json:"content"`
		ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
		ToolCallID string         `json:"tool_call_id,omitempty"`
	}
	a := alias{
		Role:       m.Role,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
	}
	if len(m.ContentParts) > 0 {
		a.Content = m.ContentParts
	} else {
		a.Content = m.Content // *string → null or "string"
	}
	return json.Marshal(a)
}

// UnmarshalJSON implements custom JSON unmarshaling for chatMessage.
// Content is always parsed as a string (API responses always return string content).
func (m *chatMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		Role       string         `json:"role"`
		Content    *string        `json:"content"`
		ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
		ToolCallID string         `json:"tool_call_id,omitempty"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Role = a.Role
	m.Content = a.Content
	m.ToolCalls = a.ToolCalls
	m.ToolCallID = a.ToolCallID
	return nil
}

// strPtr returns a pointer to a string. Used for chatMessage.Content.
func strPtr(s string) *string {
	return &s
}

// chatTool represents a tool definition in OpenAI format.
type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

// chatFunction represents a function tool definition.
type chatFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters,omitempty"`
}

// chatToolCall represents a tool call in OpenAI format.
type chatToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chatResponse represents an OpenAI-compatible chat completion response.
type chatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []chatChoice   `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
	Error   *chatRespError `json:"error,omitempty"`
}

// chatChoice represents a choice in the response.
type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatUsage represents token usage information.
type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatRespError represents an error response from the API.
type chatRespError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
