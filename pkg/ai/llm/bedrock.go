package llm

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/jordigilh/docflow/internal/config"
	"github.com/jordigilh/docflow/pkg/workflow/templates"
)

const defaultBedrockModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

// bedrockClient talks to a Bedrock-hosted model through the Converse API,
// used when config.LLM.Provider == "bedrock".
type bedrockClient struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int32
	factory   *templates.Factory
}

func newBedrockClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = defaultBedrockModel
	}
	maxTokens := int32(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &bedrockClient{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		modelID:   modelID,
		maxTokens: maxTokens,
		factory:   templates.NewFactory(),
	}, nil
}

func (c *bedrockClient) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	out, err := c.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: &c.modelID,
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: systemPrompt},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: userPrompt},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: &c.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: converse: %w", err)
	}

	output, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock: unexpected output type %T", out.Output)
	}

	var result string
	for _, block := range output.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			result += text.Value
		}
	}
	return result, nil
}

func (c *bedrockClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt)
}

func (c *bedrockClient) GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error) {
	system := c.factory.OutlineSystemPrompt(templates.Mode(mode))
	return c.complete(ctx, system, prompt)
}

func (c *bedrockClient) GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error) {
	prompt, err := c.factory.DraftPrompt(templates.Mode(mode), outline, targetWordCount)
	if err != nil {
		return "", fmt.Errorf("bedrock: render draft prompt: %w", err)
	}
	return c.complete(ctx, "You are a skilled writer.", prompt)
}

func (c *bedrockClient) CheckGrammar(ctx context.Context, content string) (string, int, error) {
	prompt, err := c.factory.GrammarPrompt(content)
	if err != nil {
		return "", 0, fmt.Errorf("bedrock: render grammar prompt: %w", err)
	}
	corrected, err := c.complete(ctx, "You are a copyeditor. Return only the corrected text, no commentary.", prompt)
	if err != nil {
		return "", 0, err
	}
	return corrected, countDiffTokens(content, corrected), nil
}
