package engine

import (
	"context"

	"github.com/jordigilh/docflow/pkg/ai/llm"
	"github.com/jordigilh/docflow/pkg/citation"
	"github.com/jordigilh/docflow/pkg/readability"
)

// GeneratorAdapter adapts an llm.Client to the engine's narrow Generator
// collaborator interface, translating WritingMode between the two
// packages' identical-but-distinct named types.
type GeneratorAdapter struct {
	Client llm.Client
}

func (a GeneratorAdapter) GenerateOutline(ctx context.Context, prompt string, mode WritingMode) (string, error) {
	return a.Client.GenerateOutline(ctx, prompt, llm.WritingMode(mode))
}

func (a GeneratorAdapter) GenerateContent(ctx context.Context, outline string, mode WritingMode, targetWordCount int) (string, error) {
	return a.Client.GenerateContent(ctx, outline, llm.WritingMode(mode), targetWordCount)
}

func (a GeneratorAdapter) CheckGrammar(ctx context.Context, content string) (string, int, error) {
	return a.Client.CheckGrammar(ctx, content)
}

// CitationValidatorAdapter adapts a *citation.Validator to the engine's
// narrow CitationValidator collaborator interface.
type CitationValidatorAdapter struct {
	Validator *citation.Validator
}

func (a CitationValidatorAdapter) ValidateBibliography(ctx context.Context, text string) (BibliographyReport, error) {
	report, err := a.Validator.ValidateBibliography(ctx, text)
	if err != nil {
		return BibliographyReport{}, err
	}
	return BibliographyReport{
		Total:          report.Total,
		Valid:          report.Valid,
		Invalid:        report.Invalid,
		ValidationRate: report.ValidationRate,
	}, nil
}

// ReadabilityAnalyzerAdapter adapts the stateless readability package to
// the engine's narrow ReadabilityAnalyzer collaborator interface.
type ReadabilityAnalyzerAdapter struct{}

func (ReadabilityAnalyzerAdapter) Analyze(text string) ReadabilityReport {
	report := readability.Analyze(text)
	return ReadabilityReport{Score: report.Score, Grade: report.Grade}
}
