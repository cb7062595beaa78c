package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pilot/internal/provider"
	"pilot/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Provider        = (*OpenAIProvider)(nil)
	_ provider.HealthCheckable = (*OpenAIProvider)(nil)
)

// Error definitions.
var (
	ErrConnectionFailed = errors.New("failed to connect to chat API")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidResponse  = errors.New("invalid response from chat API")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrAuthFailed       = errors.New("authentication failed")
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs.
type OpenAIProvider struct {
	apiKey     string
	endpoint   string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// New creates a new OpenAI-compatible provider.
func New(cfg Config) *OpenAIProvider {
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

	return &OpenAIProvider{
		apiKey:    cfg.APIKey,
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Models returns the list of known models.
func (p *OpenAIProvider) Models() []string {
	return AvailableModels
}

// Chat sends a chat completion request and returns the response.
func (p *OpenAIProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	chatReq := p.buildRequest(req)

	logger.Debug().Str("model", chatReq.Model).
		Int("message_count", len(chatReq.Messages)).
		Msg("OpenAI Chat request")

	resp, err := p.doRequest(ctx, "/chat/completions", chatReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("OpenAI error response")
		return nil, p.handleErrorResponse(resp.StatusCode, body)
	}

	if len(body) == 0 {
		logger.Warn().Int("status", resp.StatusCode).Msg("OpenAI Chat returned empty body")
		return nil, &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   "chat API returned empty response (HTTP 200)",
			Provider:  "openai",
			Retryable: true,
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		logger.Error().Err(err).Str("body", string(body)).Msg("Failed to parse OpenAI response")
		return nil, ErrInvalidResponse
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("chat API error: [%s] %s", chatResp.Error.Type, chatResp.Error.Message)
	}

	return p.convertResponse(&chatResp), nil
}

// buildRequest converts a provider.ChatRequest to an OpenAI-compatible request.
func (p *OpenAIProvider) buildRequest(req provider.ChatRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	model = strings.TrimPrefix(model, "openai:")

	hasTools := len(req.Tools) > 0

	chatReq := &chatRequest{
		Model:    model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		chatReq.MaxTokens = maxTokens
	}

	if req.Temperature > 0 {
		temp := req.Temperature
		chatReq.Temperature = &temp
	}

	// Convert messages
	for _, msg := range req.Messages {
		chatMsg := chatMessage{
			Role: msg.Role,
		}

		if len(msg.Images) > 0 {
			// Vision mode: text + images as multipart content
			var parts []contentPart
			if msg.Content != "" {
				parts = append(parts, contentPart{Type: "text", Text: msg.Content})
			}
			for _, img := range msg.Images {
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &visionImageURL{URL: img},
				})
			}
			chatMsg.ContentParts = parts
		} else if msg.Content != "" {
			chatMsg.Content = strPtr(msg.Content)
		} else if msg.Role != provider.RoleAssistant || len(msg.ToolCalls) == 0 {
			// Assistant messages that only carry tool_calls keep null content
			chatMsg.Content = strPtr(msg.Content)
		}

		if msg.Role == provider.RoleTool && msg.ToolCallID != "" {
			chatMsg.ToolCallID = msg.ToolCallID
		}

		for _, tc := range msg.ToolCalls {
			openaiTC := chatToolCall{
				ID:   tc.ID,
				Type: "function",
			}
			openaiTC.Function.Name = tc.Name
			openaiTC.Function.Arguments = tc.Arguments
			chatMsg.ToolCalls = append(chatMsg.ToolCalls, openaiTC)
		}

		chatReq.Messages = append(chatReq.Messages, chatMsg)
	}

	// Convert tools
	if hasTools {
		for _, tool := range req.Tools {
			chatReq.Tools = append(chatReq.Tools, chatTool{
				Type: tool.Type,
				Function: chatFunction{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			})
		}
	}

	// Response format: json_schema when a schema is supplied
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case provider.FormatJSONSchema:
			chatReq.ResponseFormat = &responseFormat{
				Type: "json_schema",
				JSONSchema: &jsonSchemaFormat{
					Name:   req.ResponseFormat.Name,
					Schema: req.ResponseFormat.Schema,
					Strict: req.ResponseFormat.Strict,
				},
			}
		case provider.FormatJSONObject:
			chatReq.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	return chatReq
}

// doRequest sends an HTTP request to the chat API.
func (p *OpenAIProvider) doRequest(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	url := p.endpoint + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRequestTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return resp, nil
}

// handleErrorResponse converts an error response to an appropriate error.
func (p *OpenAIProvider) handleErrorResponse(statusCode int, body []byte) error {
	var errResp chatResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		msg := errResp.Error.Message
		lowerMsg := strings.ToLower(msg)
		if strings.Contains(lowerMsg, "context window") ||
			strings.Contains(lowerMsg, "context length") ||
			strings.Contains(lowerMsg, "too many tokens") ||
			strings.Contains(lowerMsg, "maximum context length") {
			return &provider.ProviderError{
				Code:      provider.ErrCodeContextWindowExceeded,
				Message:   msg,
				Provider:  "openai",
				Retryable: true,
			}
		}

		switch statusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
		case http.StatusTooManyRequests:
			retryable := !strings.Contains(lowerMsg, "quota") &&
				!strings.Contains(lowerMsg, "billing")
			return &provider.ProviderError{
				Code:      provider.ErrCodeRateLimited,
				Message:   msg,
				Provider:  "openai",
				Retryable: retryable,
			}
		case http.StatusBadRequest:
			return &provider.ProviderError{
				Code:      provider.ErrCodeInvalidRequest,
				Message:   fmt.Sprintf("[%s] %s", errResp.Error.Type, msg),
				Provider:  "openai",
				Retryable: false,
			}
		default:
			return fmt.Errorf("chat API error (%d): [%s] %s", statusCode, errResp.Error.Type, msg)
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return ErrConnectionFailed
	default:
		return fmt.Errorf("chat API returned status %d: %s", statusCode, string(body))
	}
}

// convertResponse converts an OpenAI response to a provider response.
func (p *OpenAIProvider) convertResponse(resp *chatResponse) *provider.ChatResponse {
	result := &provider.ChatResponse{
		FinishReason: provider.FinishReasonStop,
	}

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		if choice.Message.Content != nil {
			result.Content = *choice.Message.Content
		}

		if choice.FinishReason == "tool_calls" {
			result.FinishReason = provider.FinishReasonToolCalls
		} else if choice.FinishReason == "length" {
			result.FinishReason = provider.FinishReasonLength
		}

		for _, tc := range choice.Message.ToolCalls {
			result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
				ID:        tc.ID,
				Type:      "function",
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}

	if resp.Usage != nil {
		result.Usage = &provider.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result
}

// Ping checks if the chat API is reachable and the API key is valid.
// Implements provider.HealthCheckable interface.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 空 messages 会被拒绝（400），但足以证明连通性和密钥有效，
	// 而且不消耗 token 配额
	pingReq := chatRequest{
		Model:    p.model,
		Messages: []chatMessage{},
	}

	body, err := json.Marshal(pingReq)
	if err != nil {
		return &provider.ProviderError{
			Code:      provider.ErrCodeNetworkError,
			Message:   fmt.Sprintf("创建请求失败: %v", err),
			Provider:  "openai",
			Retryable: true,
		}
	}

	url := p.endpoint + "/chat/completions"
	req, err := http.NewRequestWithContext(checkCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &provider.ProviderError{
			Code:      provider.ErrCodeNetworkError,
			Message:   fmt.Sprintf("创建请求失败: %v", err),
			Provider:  "openai",
			Retryable: true,
		}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   "chat API 无法连接",
			Provider:  "openai",
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &provider.ProviderError{
			Code:      provider.ErrCodeAuthFailed,
			Message:   "API Key 无效",
			Provider:  "openai",
			Retryable: false,
		}
	case http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests:
		// 400 是预期结果（空 messages 被拒绝），429 说明可达且密钥有效
		return nil
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   fmt.Sprintf("chat API 返回异常状态码: %d, body: %s", resp.StatusCode, string(respBody)),
			Provider:  "openai",
			Retryable: true,
		}
	}
}

// GetState returns the current state of the provider.
// Implements provider.HealthCheckable interface.
func (p *OpenAIProvider) GetState() provider.ProviderState {
	state := provider.ProviderState{
		Name:      "openai",
		LastCheck: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		state.Status = provider.StatusUnavailable
		var pe *provider.ProviderError
		if errors.As(err, &pe) {
			state.LastError = pe.Message
			if pe.Code == provider.ErrCodeAuthFailed {
				state.Status = provider.StatusAuthFailed
			}
		} else {
			state.LastError = err.Error()
		}
		return state
	}

	state.Status = provider.StatusConnected
	state.Models = p.Models()
	return state
}
