package llm

import (
	"context"
	"fmt"
	"strings"
)

// Roles a completion message can carry. Providers that use different role
// vocabularies translate from these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of a chat completion request.
type Message struct {
	Role    string
	Content string
}

// Client is a minimal chat-completion client. Implementations wrap one
// provider SDK and return the assistant text with whitespace trimmed.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int
	temperature *float64
}

// WithBaseURL points the client at a non-default API endpoint. Used by tests
// and by OpenAI-compatible proxies.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the completion length for providers that require an
// explicit limit.
func WithMaxTokens(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature fixes the sampling temperature. The conversation partner
// runs warm for varied replies; the reviewer runs cold so its JSON grading
// stays stable. Unset leaves each provider's default.
func WithTemperature(t float64) Option {
	return func(o *clientOptions) {
		if t >= 0 {
			o.temperature = &t
		}
	}
}

// ParseModel splits a "provider/model_name" string.
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

// NewClient builds a Client for the given provider.
func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{maxTokens: 4096}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}
