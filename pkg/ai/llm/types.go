// Package llm is the narrow text-generation gateway used by the Plan,
// Draft, and Grammar stages: a single capability set backed by one of
// several providers, selected by configuration rather than by type.
package llm

import "context"

// WritingMode mirrors the workflow engine's writing-mode enum without
// importing the engine package, keeping the dependency direction from
// engine to llm rather than the reverse.
type WritingMode string

const (
	WritingModeAcademic WritingMode = "academic"
	WritingModeBlog      WritingMode = "blog"
	WritingModeSocial    WritingMode = "social"
)

// Client is the capability set spec.md's design notes name for the
// LLM-facing collaborator: generate_text, generate_outline,
// generate_content, check_grammar, represented here as a single
// interface rather than per-writing-mode types.
type Client interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error)
	GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error)
	CheckGrammar(ctx context.Context, content string) (corrected string, errorCount int, err error)
}
