package llm

import (
	"testing"
	"time"
)

func TestNewOpenAIProviderDefaults(t *testing.T) {
	p := NewOpenAIProvider()
	if p.model != "gpt-4o" {
		t.Fatalf("expected default model %q, got %q", "gpt-4o", p.model)
	}
	if p.maxTokens != defaultMaxCompletionTokens {
		t.Fatalf("expected default completion cap %d, got %d", defaultMaxCompletionTokens, p.maxTokens)
	}
	if p.retries != defaultTransientRetries {
		t.Fatalf("expected default retries %d, got %d", defaultTransientRetries, p.retries)
	}
}

func TestNewOpenAIProviderOptions(t *testing.T) {
	p := NewOpenAIProvider(
		WithModel("gpt-4o-mini"),
		WithAPIKey("test-key"),
		WithBaseURL("http://localhost:11434/v1"),
		WithRequestTimeout(5*time.Second),
		WithMaxCompletionTokens(256),
		WithTransientRetries(0),
	)
	if p.model != "gpt-4o-mini" {
		t.Fatalf("expected model override, got %q", p.model)
	}
	if p.maxTokens != 256 {
		t.Fatalf("expected completion cap 256, got %d", p.maxTokens)
	}
	if p.retries != 0 {
		t.Fatalf("expected retries disabled, got %d", p.retries)
	}
}

func TestOpenAIProviderImplementsProvider(t *testing.T) {
	var _ Provider = (*OpenAIProvider)(nil)
}
