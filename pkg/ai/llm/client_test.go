package llm

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/docflow/internal/config"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestNewClient_NoAPIKeyFallsBackToMock(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "anthropic"}, discardLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, ok := c.(mockClient); !ok {
		t.Errorf("NewClient() with no API key = %T, want mockClient", c)
	}
}

func TestNewClient_ExplicitMock(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "mock"}, discardLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, ok := c.(mockClient); !ok {
		t.Errorf("NewClient() = %T, want mockClient", c)
	}
}

func TestNewClient_AnthropicWithAPIKey(t *testing.T) {
	c, err := NewClient(context.Background(), config.LLMConfig{Provider: "anthropic", APIKey: "sk-test"}, discardLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, ok := c.(*anthropicClient); !ok {
		t.Errorf("NewClient() = %T, want *anthropicClient", c)
	}
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), config.LLMConfig{Provider: "invalid", APIKey: "x"}, discardLogger())
	if err == nil {
		t.Fatal("NewClient() expected error for unsupported provider")
	}
	if !strings.Contains(err.Error(), "unsupported provider: invalid") {
		t.Errorf("NewClient() error = %q, want it to name the provider", err)
	}
}

func TestMockClient_Capabilities(t *testing.T) {
	c := newMockClient()
	ctx := context.Background()

	text, err := c.GenerateText(ctx, "system", "hello")
	if err != nil || text == "" {
		t.Fatalf("GenerateText() = %q, %v", text, err)
	}

	outline, err := c.GenerateOutline(ctx, "topic", WritingModeBlog)
	if err != nil || !strings.Contains(outline, "Introduction") {
		t.Fatalf("GenerateOutline() = %q, %v", outline, err)
	}

	content, err := c.GenerateContent(ctx, outline, WritingModeBlog, 500)
	if err != nil || !strings.Contains(content, "500") {
		t.Fatalf("GenerateContent() = %q, %v", content, err)
	}

	corrected, errCount, err := c.CheckGrammar(ctx, "some text")
	if err != nil || corrected != "some text" || errCount != 0 {
		t.Fatalf("CheckGrammar() = %q, %d, %v", corrected, errCount, err)
	}
}
