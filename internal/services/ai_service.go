// Package services implements assessment generation: the completion client, the
// structured generation state machine, language enforcement and the assembly pipeline.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/config"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/models"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/serviceinterfaces"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/version"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// defaultMaxOutputTokens is used when neither the request nor the model sets a limit
const defaultMaxOutputTokens = 4000

// ConcurrencyStats provides metrics about AI request concurrency
type ConcurrencyStats struct {
	ActiveRequests int   `json:"active_requests"`
	MaxConcurrent  int   `json:"max_concurrent"`
	TotalRequests  int64 `json:"total_requests"`
}

// AIService is a CompletionService for OpenAI-compatible chat completion endpoints
type AIService struct {
	httpClient *http.Client
	debug      bool
	cfg        *config.Config

	templateManager *AITemplateManager

	// Concurrency control
	globalSemaphore chan struct{}
	maxConcurrent   int

	// Metrics
	totalRequests  int64
	activeRequests int
	statsMu        sync.RWMutex

	logger *observability.Logger

	// Shutdown control
	shutdownCtx context.Context
	shutdownMu  sync.RWMutex
}

var (
	_ serviceinterfaces.CompletionService = (*AIService)(nil)
	_ serviceinterfaces.Lifecycle         = (*AIService)(nil)
)

// NewAIService creates a new AI service instance
func NewAIService(cfg *config.Config, logger *observability.Logger) (*AIService, error) {
	templateManager, err := NewAITemplateManager()
	if err != nil {
		return nil, err
	}

	// The client timeout stays below AIRequestTimeout so context cancellation wins
	httpClient := &http.Client{
		Timeout: config.AIRequestTimeout - 5*time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanOptions(trace.WithSpanKind(trace.SpanKindClient)),
		),
	}

	maxConcurrent := cfg.Server.MaxAIConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = config.DefaultMaxAIConcurrent
	}

	return &AIService{
		httpClient:      httpClient,
		debug:           cfg.Server.Debug || cfg.Assessment.Debug,
		cfg:             cfg,
		templateManager: templateManager,
		globalSemaphore: make(chan struct{}, maxConcurrent),
		maxConcurrent:   maxConcurrent,
		shutdownCtx:     context.Background(),
		logger:          logger,
	}, nil
}

// Shutdown waits for in-flight requests and releases idle connections
func (s *AIService) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	shutdownCtx, cancel := context.WithCancel(ctx)
	s.shutdownCtx = shutdownCtx
	s.shutdownMu.Unlock()
	defer cancel()

	timeout := config.AIShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	ticker := time.NewTicker(config.AIShutdownPollInterval)
	defer ticker.Stop()

	for i := 0; i < int(timeout/config.AIShutdownPollInterval); i++ {
		s.statsMu.RLock()
		active := s.activeRequests
		s.statsMu.RUnlock()

		if active == 0 {
			break
		}

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.httpClient.CloseIdleConnections()

	s.logger.Info(ctx, "AI service shutdown completed")
	return nil
}

func (s *AIService) isShutdown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	select {
	case <-s.shutdownCtx.Done():
		return true
	default:
		return false
	}
}

// OpenAIRequest represents a request to the OpenAI-compatible API
type OpenAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Grammar        string          `json:"grammar,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Message represents a chat message in the API request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat requests schema-constrained output from providers that support it
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema is the named schema of a ResponseFormat
type JSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

// OpenAIResponse represents a response from the OpenAI-compatible API
type OpenAIResponse struct {
	Choices []Choice      `json:"choices"`
	Usage   *models.Usage `json:"usage,omitempty"`
	Error   *APIError     `json:"error,omitempty"`
}

// Choice represents a choice in the API response
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends one chat completion request. When req.Schema is set the provider is
// asked for structured output through the grammar field or a json_schema response
// format, or the schema is spelled out in the prompt for providers with neither.
func (s *AIService) Complete(ctx context.Context, req models.CompletionRequest) (result0 *models.RawCompletion, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "complete",
		attribute.String("ai.provider", req.Provider),
		observability.AttributeModel(req.Model),
		attribute.Int("messages.count", len(req.Messages)),
		attribute.Bool("schema.enabled", req.Schema != ""),
	)
	defer observability.FinishSpan(span, &err)

	if s.isShutdown() {
		return nil, contextutils.WrapError(contextutils.ErrServiceUnavailable, "AI service is shutting down")
	}

	provider, ok := s.cfg.GetProvider(req.Provider)
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "unknown provider '%s'", req.Provider)
	}
	if provider.URL == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "no base URL configured for provider '%s'", provider.Code)
	}
	if req.Model == "" {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "model is required")
	}
	if len(req.Messages) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrAIConfigInvalid, "at least one message is required")
	}

	body, err := s.buildRequest(provider, req)
	if err != nil {
		return nil, err
	}

	if err := s.acquireGlobalSlot(ctx); err != nil {
		return nil, err
	}
	defer s.releaseGlobalSlot(ctx)

	return s.post(ctx, provider, req, body)
}

func (s *AIService) buildRequest(provider *config.ProviderConfig, req models.CompletionRequest) ([]byte, error) {
	messages := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}

	reqBody := OpenAIRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   s.maxOutputTokens(provider, req),
	}

	if req.Schema != "" {
		switch {
		case provider.SupportsGrammar:
			reqBody.Grammar = req.Schema
		case provider.SupportsJSONSchema:
			name := req.SchemaName
			if name == "" {
				name = "response"
			}
			reqBody.ResponseFormat = &ResponseFormat{
				Type: "json_schema",
				JSONSchema: &JSONSchema{
					Name:   name,
					Schema: json.RawMessage(req.Schema),
					Strict: false,
				},
			}
		default:
			last := len(reqBody.Messages) - 1
			reqBody.Messages[last].Content = s.addJSONStructureGuidance(reqBody.Messages[last].Content, req.Schema)
		}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "failed to marshal request body: %w", err)
	}
	return data, nil
}

// maxOutputTokens prefers the request budget, capped by the model's configured limit
func (s *AIService) maxOutputTokens(provider *config.ProviderConfig, req models.CompletionRequest) int {
	limit := provider.ModelMaxTokens(req.Model)
	n := req.MaxOutputTokens
	switch {
	case n <= 0 && limit > 0:
		return limit
	case n <= 0:
		return defaultMaxOutputTokens
	case limit > 0 && n > limit:
		return limit
	}
	return n
}

// addJSONStructureGuidance appends the schema to a prompt for providers without structured output
func (s *AIService) addJSONStructureGuidance(prompt, schema string) string {
	guidance := s.templateManager.MustRender(JSONStructureGuidanceTemplate, AITemplateData{SchemaForPrompt: schema})
	return prompt + "\n\n" + guidance
}

func (s *AIService) post(ctx context.Context, provider *config.ProviderConfig, req models.CompletionRequest, body []byte) (*models.RawCompletion, error) {
	span := trace.SpanFromContext(ctx)
	url := strings.TrimRight(provider.URL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "assessgen/"+version.Version)
	if apiKey := firstNonEmpty(req.APIKey, provider.APIKey); apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	if s.debug {
		s.logger.Debug(ctx, "Making AI HTTP request", map[string]interface{}{
			"url":      url,
			"model":    req.Model,
			"provider": provider.Code,
			"body":     string(body),
		})
	}

	startTime := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "http_request_failed"))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "HTTP request failed after %v: %w", duration, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	s.logger.Info(ctx, "AI HTTP request completed", map[string]interface{}{
		"provider":    provider.Code,
		"model":       req.Model,
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
	})

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "body_read_failed"))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "API request failed with status %d to %s: %s", resp.StatusCode, url, truncateForLog(string(respBody)))
	}

	var openAIResp OpenAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		span.SetAttributes(attribute.String("call.result", "json_unmarshal_failed"))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "failed to parse AI response as JSON: %w", err)
	}

	if openAIResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", openAIResp.Error.Type))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "provider error: %s", openAIResp.Error.Message)
	}

	if len(openAIResp.Choices) == 0 {
		span.SetAttributes(attribute.String("call.result", "no_choices"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "no choices in AI response")
	}

	content := openAIResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		span.SetAttributes(attribute.String("call.result", "empty_content"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI returned empty content")
	}

	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return &models.RawCompletion{Text: content, Usage: openAIResp.Usage}, nil
}

// GetConcurrencyStats returns current concurrency metrics
func (s *AIService) GetConcurrencyStats() ConcurrencyStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	return ConcurrencyStats{
		ActiveRequests: s.activeRequests,
		MaxConcurrent:  s.maxConcurrent,
		TotalRequests:  s.totalRequests,
	}
}

// acquireGlobalSlot waits for a free request slot or for ctx to end
func (s *AIService) acquireGlobalSlot(ctx context.Context) error {
	select {
	case s.globalSemaphore <- struct{}{}:
		s.statsMu.Lock()
		s.activeRequests++
		s.totalRequests++
		s.statsMu.Unlock()
		return nil
	case <-ctx.Done():
		return contextutils.WrapErrorf(contextutils.ErrTimeout, "request cancelled while waiting for AI slot: %w", ctx.Err())
	}
}

func (s *AIService) releaseGlobalSlot(ctx context.Context) {
	select {
	case <-s.globalSemaphore:
		s.statsMu.Lock()
		if s.activeRequests > 0 {
			s.activeRequests--
		}
		s.statsMu.Unlock()
	default:
		s.logger.Warn(ctx, "Attempted to release AI slot but none were acquired", nil)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncateForLog(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
