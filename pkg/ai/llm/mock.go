package llm

import (
	"context"
	"fmt"
	"strings"
)

// mockClient is the "no LLM configured" fallback spec.md §6 names:
// static, deterministic content so the downstream gates still have
// something to evaluate when no provider API key is set.
type mockClient struct{}

func newMockClient() Client {
	return mockClient{}
}

func (mockClient) GenerateText(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	return fmt.Sprintf("[mock response] %s", strings.TrimSpace(userPrompt)), nil
}

func (mockClient) GenerateOutline(_ context.Context, prompt string, mode WritingMode) (string, error) {
	return fmt.Sprintf("I. Introduction to %s\nII. Main points\nIII. Conclusion\n(mock outline, mode=%s)", strings.TrimSpace(prompt), mode), nil
}

func (mockClient) GenerateContent(_ context.Context, outline string, mode WritingMode, targetWordCount int) (string, error) {
	body := fmt.Sprintf(
		"This is placeholder content generated without a configured LLM provider. It expands on the outline:\n%s\n\nTarget length was approximately %d words in %s mode.",
		outline, targetWordCount, mode,
	)
	return body, nil
}

func (mockClient) CheckGrammar(_ context.Context, content string) (string, int, error) {
	return content, 0, nil
}
