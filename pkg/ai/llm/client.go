package llm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/docflow/internal/config"
)

// NewClient selects a Client backend per cfg.Provider. A missing API key
// degrades to the mock backend rather than failing startup, per the
// "no LLM configured" policy: gates still run against static content.
// The bedrock provider is exempt: it loads AWS credentials from the
// default chain and needs no API key.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *logrus.Logger) (Client, error) {
	provider := cfg.Provider
	if provider != "mock" && cfg.APIKey == "" && provider != "bedrock" {
		log.WithField("provider", provider).Warn("llm: no API key configured, falling back to mock client")
		provider = "mock"
	}

	switch provider {
	case "anthropic":
		return newAnthropicClient(cfg), nil
	case "bedrock":
		return newBedrockClient(ctx, cfg)
	case "mock", "":
		return newMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
