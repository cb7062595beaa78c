package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pilot/internal/provider"
	"pilot/pkg/logger"
)

// Compile-time interface checks.
var (
	_ provider.Provider        = (*OllamaProvider)(nil)
	_ provider.HealthCheckable = (*OllamaProvider)(nil)
)

// Error definitions.
var (
	ErrConnectionFailed = errors.New("failed to connect to Ollama server")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidResponse  = errors.New("invalid response from Ollama")
	ErrRequestTimeout   = errors.New("request timeout")
)

// OllamaProvider implements the Provider interface for Ollama.
type OllamaProvider struct {
	endpoint   string
	model      string
	httpClient *http.Client
	keepAlive  string

	// Cached model list
	modelsCache []string
	modelsMu    sync.RWMutex
	modelsTime  time.Time
}

// New creates a new Ollama provider.
func New(cfg Config) *OllamaProvider {
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

	return &OllamaProvider{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		keepAlive: cfg.KeepAlive,
	}
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Models returns the list of available models.
func (p *OllamaProvider) Models() []string {
	p.modelsMu.RLock()
	// Return cached if less than 5 minutes old
	if time.Since(p.modelsTime) < 5*time.Minute && len(p.modelsCache) > 0 {
		models := p.modelsCache
		p.modelsMu.RUnlock()
		return models
	}
	p.modelsMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := p.fetchModels(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch Ollama models, returning cached")
		p.modelsMu.RLock()
		defer p.modelsMu.RUnlock()
		return p.modelsCache
	}

	p.modelsMu.Lock()
	p.modelsCache = models
	p.modelsTime = time.Now()
	p.modelsMu.Unlock()

	return models
}

// Chat sends a chat completion request and returns the response.
func (p *OllamaProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	ollamaReq := p.buildRequest(req)

	logger.Debug().Str("model", ollamaReq.Model).Msg("Ollama Chat request")

	resp, err := p.doRequest(ctx, "/api/chat", ollamaReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Ollama error response")
		return nil, p.handleErrorResponse(resp.StatusCode, body)
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		logger.Error().Err(err).Str("body", string(body)).Msg("Failed to parse Ollama response")
		return nil, ErrInvalidResponse
	}

	return p.convertResponse(&ollamaResp), nil
}

// stripDataURL removes a data URL prefix, leaving raw base64 as Ollama expects.
func stripDataURL(img string) string {
	if strings.HasPrefix(img, "data:") {
		if i := strings.IndexByte(img, ','); i >= 0 {
			return img[i+1:]
		}
	}
	return img
}

// buildRequest converts a provider.ChatRequest to an Ollama request.
func (p *OllamaProvider) buildRequest(req provider.ChatRequest) *ollamaRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	model = strings.TrimPrefix(model, "ollama:")

	hasTools := len(req.Tools) > 0

	ollamaReq := &ollamaRequest{
		Model:     model,
		Messages:  make([]ollamaMessage, 0, len(req.Messages)),
		Stream:    false,
		KeepAlive: p.keepAlive,
	}

	for _, msg := range req.Messages {
		// Models without tool support choke on tool history; skip it
		if !hasTools {
			if msg.Role == provider.RoleTool {
				continue
			}
			if msg.Role == provider.RoleAssistant && len(msg.ToolCalls) > 0 && msg.Content == "" {
				continue
			}
		}

		ollamaMsg := ollamaMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		for _, img := range msg.Images {
			ollamaMsg.Images = append(ollamaMsg.Images, stripDataURL(img))
		}

		if hasTools {
			for _, tc := range msg.ToolCalls {
				ollamaTC := ollamaToolCall{
					ID:   tc.ID,
					Type: "function",
				}
				ollamaTC.Function.Name = tc.Name

				// Ollama expects arguments as a JSON object, not a string
				if tc.Arguments != "" {
					var argsMap map[string]interface{}
					if err := json.Unmarshal([]byte(tc.Arguments), &argsMap); err != nil {
						ollamaTC.Function.Arguments = make(map[string]interface{})
					} else {
						ollamaTC.Function.Arguments = argsMap
					}
				} else {
					ollamaTC.Function.Arguments = make(map[string]interface{})
				}

				ollamaMsg.ToolCalls = append(ollamaMsg.ToolCalls, ollamaTC)
			}
		}

		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMsg)
	}

	if hasTools {
		for _, tool := range req.Tools {
			ollamaReq.Tools = append(ollamaReq.Tools, ollamaTool{
				Type: tool.Type,
				Function: ollamaToolFunction{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
					Parameters:  tool.Function.Parameters,
				},
			})
		}
	}

	// Structured output: Ollama takes the schema directly in "format"
	if req.ResponseFormat != nil {
		switch req.ResponseFormat.Type {
		case provider.FormatJSONSchema:
			if len(req.ResponseFormat.Schema) > 0 {
				ollamaReq.Format = req.ResponseFormat.Schema
			} else {
				ollamaReq.Format = json.RawMessage(`"json"`)
			}
		case provider.FormatJSONObject:
			ollamaReq.Format = json.RawMessage(`"json"`)
		}
	}

	if req.Temperature > 0 || req.MaxTokens > 0 {
		ollamaReq.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	return ollamaReq
}

// doRequest sends an HTTP request to the Ollama API.
func (p *OllamaProvider) doRequest(ctx context.Context, path string, body interface{}) (*http.Response, error) {
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
func (p *OllamaProvider) handleErrorResponse(statusCode int, body []byte) error {
	var errResp ollamaErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if statusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrModelNotFound, errResp.Error)
		}
		return fmt.Errorf("ollama error: %s", errResp.Error)
	}

	switch statusCode {
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusServiceUnavailable:
		return ErrConnectionFailed
	default:
		return fmt.Errorf("ollama returned status %d: %s", statusCode, string(body))
	}
}

// convertResponse converts an Ollama response to a provider response.
func (p *OllamaProvider) convertResponse(resp *ollamaResponse) *provider.ChatResponse {
	result := &provider.ChatResponse{
		Content:      resp.Message.Content,
		FinishReason: provider.FinishReasonStop,
	}

	for _, tc := range resp.Message.ToolCalls {
		var argsStr string
		if tc.Function.Arguments != nil {
			if argsBytes, err := json.Marshal(tc.Function.Arguments); err == nil {
				argsStr = string(argsBytes)
			}
		}
		result.ToolCalls = append(result.ToolCalls, provider.ToolCall{
			ID:        tc.ID,
			Type:      "function",
			Name:      tc.Function.Name,
			Arguments: argsStr,
		})
	}

	if len(result.ToolCalls) > 0 {
		result.FinishReason = provider.FinishReasonToolCalls
	}

	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		result.Usage = &provider.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
	}

	return result
}

// fetchModels fetches the list of available models from Ollama.
func (p *OllamaProvider) fetchModels(ctx context.Context) ([]string, error) {
	url := p.endpoint + "/api/tags"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch models: status %d", resp.StatusCode)
	}

	var modelsResp ollamaModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	models := make([]string, 0, len(modelsResp.Models))
	for _, m := range modelsResp.Models {
		models = append(models, m.Name)
	}

	return models, nil
}

// Ping checks if the Ollama server is available.
// Implements provider.HealthCheckable interface.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	url := p.endpoint + "/api/tags"
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return &provider.ProviderError{
			Code:      provider.ErrCodeNetworkError,
			Message:   fmt.Sprintf("创建请求失败: %v", err),
			Provider:  "ollama",
			Retryable: true,
		}
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   "Ollama 服务未运行或无法连接",
			Provider:  "ollama",
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &provider.ProviderError{
			Code:      provider.ErrCodeServiceUnavailable,
			Message:   fmt.Sprintf("Ollama 服务返回异常状态码: %d", resp.StatusCode),
			Provider:  "ollama",
			Retryable: true,
		}
	}

	return nil
}

// GetState returns the current state of the Ollama provider.
// Implements provider.HealthCheckable interface.
func (p *OllamaProvider) GetState() provider.ProviderState {
	state := provider.ProviderState{
		Name:      "ollama",
		LastCheck: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		state.Status = provider.StatusUnavailable
		var pe *provider.ProviderError
		if errors.As(err, &pe) {
			state.LastError = pe.Message
		} else {
			state.LastError = err.Error()
		}
		return state
	}

	state.Status = provider.StatusConnected
	state.Models = p.Models()
	return state
}
