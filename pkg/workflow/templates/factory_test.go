package templates

import (
	"strings"
	"testing"
)

func TestDraftPrompt_EachMode(t *testing.T) {
	f := NewFactory()

	for _, mode := range []Mode{ModeAcademic, ModeBlog, ModeSocial} {
		prompt, err := f.DraftPrompt(mode, "I. Intro\nII. Body\nIII. Conclusion", 500)
		if err != nil {
			t.Fatalf("DraftPrompt(%s) error = %v", mode, err)
		}
		if !strings.Contains(prompt, "I. Intro") {
			t.Errorf("DraftPrompt(%s) missing outline content", mode)
		}
		if !strings.Contains(prompt, "500") {
			t.Errorf("DraftPrompt(%s) missing word count", mode)
		}
	}
}

func TestDraftPrompt_UnknownModeFallsBackToBlog(t *testing.T) {
	f := NewFactory()
	prompt, err := f.DraftPrompt(Mode("unknown"), "outline text", 300)
	if err != nil {
		t.Fatalf("DraftPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "blog-post") {
		t.Errorf("DraftPrompt() with unknown mode = %q, want blog fallback", prompt)
	}
}

func TestGrammarPrompt(t *testing.T) {
	f := NewFactory()
	prompt, err := f.GrammarPrompt("This are a test.")
	if err != nil {
		t.Fatalf("GrammarPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "This are a test.") {
		t.Errorf("GrammarPrompt() missing input content")
	}
}

func TestOutlineSystemPrompt(t *testing.T) {
	f := NewFactory()
	prompt := f.OutlineSystemPrompt(ModeAcademic)
	if !strings.Contains(prompt, "academic") {
		t.Errorf("OutlineSystemPrompt() = %q, want it to mention the mode", prompt)
	}
}
