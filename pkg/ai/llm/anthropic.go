package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jordigilh/docflow/internal/config"
	"github.com/jordigilh/docflow/pkg/workflow/templates"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// anthropicClient talks to the Anthropic API directly via the official
// SDK, used when config.LLM.Provider == "anthropic".
type anthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	factory     *templates.Factory
}

func newAnthropicClient(cfg config.LLMConfig) Client {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &anthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: maxTokens,
		factory:   templates.NewFactory(),
	}
}

func (c *anthropicClient) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if text := block.AsText(); text.Text != "" {
			out.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func (c *anthropicClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt)
}

func (c *anthropicClient) GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error) {
	system := c.factory.OutlineSystemPrompt(templates.Mode(mode))
	return c.complete(ctx, system, prompt)
}

func (c *anthropicClient) GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error) {
	prompt, err := c.factory.DraftPrompt(templates.Mode(mode), outline, targetWordCount)
	if err != nil {
		return "", fmt.Errorf("anthropic: render draft prompt: %w", err)
	}
	return c.complete(ctx, "You are a skilled writer.", prompt)
}

func (c *anthropicClient) CheckGrammar(ctx context.Context, content string) (string, int, error) {
	prompt, err := c.factory.GrammarPrompt(content)
	if err != nil {
		return "", 0, fmt.Errorf("anthropic: render grammar prompt: %w", err)
	}
	corrected, err := c.complete(ctx, "You are a copyeditor. Return only the corrected text, no commentary.", prompt)
	if err != nil {
		return "", 0, err
	}
	return corrected, countDiffTokens(content, corrected), nil
}

// countDiffTokens is a coarse grammar-error proxy: the number of
// whitespace-delimited tokens that differ position-for-position between
// the original and corrected text.
func countDiffTokens(original, corrected string) int {
	origWords := strings.Fields(original)
	corrWords := strings.Fields(corrected)
	n := len(origWords)
	if len(corrWords) < n {
		n = len(corrWords)
	}
	diff := 0
	for i := 0; i < n; i++ {
		if origWords[i] != corrWords[i] {
			diff++
		}
	}
	diff += abs(len(origWords) - len(corrWords))
	return diff
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
