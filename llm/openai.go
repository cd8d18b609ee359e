package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Guard calls sit on the request hot path: a user's turn is waiting on
// the extractor or judge, so the defaults are tuned accordingly. The
// request timeout is seconds, not minutes; completions are capped small
// (both callers expect one compact JSON object back, never prose); and a
// transient transport failure gets one bounded retry before the caller's
// own degradation (fail-open defaults, flagged verdicts) takes over.
const (
	defaultModel               = "gpt-4o"
	defaultRequestTimeout      = 30 * time.Second
	defaultMaxCompletionTokens = 1024
	defaultTransientRetries    = 1
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// endpoint (the hosted API, Ollama, vLLM, Azure via WithBaseURL).
type OpenAIProvider struct {
	client    openai.Client
	model     string
	maxTokens int64
	retries   int
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	model     string
	apiKey    string
	baseURL   string
	timeout   time.Duration
	maxTokens int64
	retries   int
}

// WithModel sets the model name (default: "gpt-4o").
func WithModel(model string) OpenAIOption {
	return func(c *openaiConfig) { c.model = model }
}

// WithAPIKey sets the API key. If empty, the SDK falls back to OPENAI_API_KEY.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openaiConfig) { c.apiKey = key }
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithRequestTimeout bounds each API call (default: 30 seconds).
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) { c.timeout = d }
}

// WithMaxCompletionTokens caps the completion size (default: 1024).
// Zero or negative leaves the cap unset.
func WithMaxCompletionTokens(n int64) OpenAIOption {
	return func(c *openaiConfig) { c.maxTokens = n }
}

// WithTransientRetries sets how many times a failed call is retried
// before the error surfaces (default: 1). Zero disables retrying.
func WithTransientRetries(n int) OpenAIOption {
	return func(c *openaiConfig) { c.retries = n }
}

// NewOpenAIProvider creates an OpenAIProvider with the given options.
func NewOpenAIProvider(opts ...OpenAIOption) *OpenAIProvider {
	cfg := openaiConfig{
		model:     defaultModel,
		timeout:   defaultRequestTimeout,
		maxTokens: defaultMaxCompletionTokens,
		retries:   defaultTransientRetries,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithRequestTimeout(cfg.timeout),
	}
	if cfg.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(clientOpts...),
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
		retries:   cfg.retries,
	}
}

// Complete sends a chat completion request, retrying transient failures
// up to the configured bound. A cancelled or expired context is never
// retried: the deadline belongs to the waiting guard operation, and the
// extractor and judge map it to their own failure handling.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, len(messages)),
	}
	for i, m := range messages {
		params.Messages[i] = sdkMessage(m)
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(p.maxTokens)
	}

	var lastErr error
	for attempt := 1; attempt <= p.retries+1; attempt++ {
		completion, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			slog.Warn("llm completion attempt failed",
				"model", p.model, "attempt", attempt, "error", err)
			continue
		}
		if len(completion.Choices) == 0 {
			return nil, errors.New("llm: completion carried no choices")
		}
		return &Response{Content: completion.Choices[0].Message.Content}, nil
	}
	return nil, fmt.Errorf("llm: completion failed after %d attempts: %w", p.retries+1, lastErr)
}

// sdkMessage maps one Message to the SDK's union type. Unknown roles are
// sent as user turns so nothing silently gains system authority.
func sdkMessage(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content)
	case RoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}
