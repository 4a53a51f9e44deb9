package engine

import (
	"context"

	"github.com/jordigilh/docflow/pkg/eventbus"
)

// Generator is the narrow LLM-facing capability the Plan, Draft, and
// Grammar stages depend on — the single interface named in spec.md's
// design notes, independent of which provider backs it.
type Generator interface {
	GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error)
	GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error)
	CheckGrammar(ctx context.Context, content string) (corrected string, errorCount int, err error)
}

// CitationValidator is the subset of the citation validator the Citation
// stage depends on.
type CitationValidator interface {
	ValidateBibliography(ctx context.Context, text string) (BibliographyReport, error)
}

// BibliographyReport mirrors validate_bibliography's response shape.
type BibliographyReport struct {
	Total          int
	Valid          int
	Invalid        int
	ValidationRate float64
}

// ReadabilityAnalyzer is the subset of the readability analyzer the
// Readability stage depends on.
type ReadabilityAnalyzer interface {
	Analyze(text string) ReadabilityReport
}

type ReadabilityReport struct {
	Score float64
	Grade string
}

// EventPublisher is the subset of the event bus the engine depends on to
// fan out workflow/node/content/error events.
type EventPublisher interface {
	Publish(documentID string, kind eventbus.Kind, payload map[string]any)
}
