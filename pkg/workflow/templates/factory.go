// Package templates renders the Plan/Draft/Grammar prompts sent to the
// LLM Gateway, one template per writing mode, using langchaingo's
// prompt-templating package so variable substitution and escaping follow
// the same rules as the rest of the ecosystem.
package templates

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Mode is the closed set of writing modes a template factory supports.
type Mode string

const (
	ModeAcademic Mode = "academic"
	ModeBlog     Mode = "blog"
	ModeSocial   Mode = "social"
)

const outlineSystemPrompt = "You are an outline generator. Produce a structured outline for the requested topic, written for a %s audience."

const academicDraftTemplate = `Write a full academic-register draft from the outline below. Target approximately {{.word_count}} words, cite sources with numbered [n] or (Author, Year) references where claims need support.

Outline:
{{.outline}}`

const blogDraftTemplate = `Write a full blog-post draft from the outline below, conversational tone, target approximately {{.word_count}} words.

Outline:
{{.outline}}`

const socialDraftTemplate = `Write a short, punchy social-media post from the outline below, target approximately {{.word_count}} words, no citations needed.

Outline:
{{.outline}}`

const grammarTemplate = `Correct grammar and spelling errors in the text below. Return only the corrected text.

Text:
{{.content}}`

// Factory renders the prompt text for a given stage and writing mode.
type Factory struct {
	draftTemplates map[Mode]prompts.PromptTemplate
	grammar        prompts.PromptTemplate
}

func NewFactory() *Factory {
	newTemplate := func(tmpl string, vars ...string) prompts.PromptTemplate {
		return prompts.PromptTemplate{
			Template:         tmpl,
			TemplateFormat:   prompts.TemplateFormatGoTemplate,
			InputVariables:   vars,
			PartialVariables: map[string]any{},
		}
	}

	return &Factory{
		draftTemplates: map[Mode]prompts.PromptTemplate{
			ModeAcademic: newTemplate(academicDraftTemplate, "outline", "word_count"),
			ModeBlog:     newTemplate(blogDraftTemplate, "outline", "word_count"),
			ModeSocial:   newTemplate(socialDraftTemplate, "outline", "word_count"),
		},
		grammar: newTemplate(grammarTemplate, "content"),
	}
}

// OutlineSystemPrompt returns the system prompt steering outline
// generation for mode.
func (f *Factory) OutlineSystemPrompt(mode Mode) string {
	return fmt.Sprintf(outlineSystemPrompt, string(mode))
}

// DraftPrompt renders the draft-generation prompt for mode.
func (f *Factory) DraftPrompt(mode Mode, outline string, targetWordCount int) (string, error) {
	tmpl, ok := f.draftTemplates[mode]
	if !ok {
		tmpl = f.draftTemplates[ModeBlog]
	}
	return tmpl.Format(map[string]any{
		"outline":    outline,
		"word_count": targetWordCount,
	})
}

// GrammarPrompt renders the grammar-correction prompt.
func (f *Factory) GrammarPrompt(content string) (string, error) {
	return f.grammar.Format(map[string]any{"content": content})
}
