package citation

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestExtract_Numbered(t *testing.T) {
	text := "This claim is supported [1] and also [2]. Repeated [1] is deduped."
	citations := Extract(text)

	count := 0
	for _, c := range citations {
		if c.Kind == KindNumbered {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Extract() found %d numbered citations, want 2", count)
	}
}

// TestExtract_NumberedRoundTrip exercises the round-trip law: extracting
// a numbered citation, formatting it back into text, and extracting
// again must reproduce the same kind and payload.
func TestExtract_NumberedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"single", "See reference [1] for details."},
		{"multiple", "First [3] then [7] and finally [12]."},
		{"repeated", "Cited [1] here and [1] again."},
		{"adjacent", "Supported [1][2] by two sources."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := Extract(tt.text)
			if len(first) == 0 {
				t.Fatalf("Extract(%q) found no citations", tt.text)
			}

			var rebuilt strings.Builder
			for _, c := range first {
				fmt.Fprintf(&rebuilt, "claim %s. ", c.Span)
			}

			second := Extract(rebuilt.String())
			if len(second) != len(first) {
				t.Fatalf("round trip changed citation count: got %d, want %d", len(second), len(first))
			}
			for i := range first {
				if second[i].Kind != first[i].Kind || second[i].Payload != first[i].Payload {
					t.Errorf("round trip[%d] = %+v, want kind/payload matching %+v", i, second[i], first[i])
				}
			}
		})
	}
}

func TestExtract_AuthorYear(t *testing.T) {
	text := "Prior work (Smith, 2020) established this; later (Jones, 2022) extended it."
	citations := Extract(text)

	count := 0
	for _, c := range citations {
		if c.Kind == KindAuthorYear {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Extract() found %d author-year citations, want 2", count)
	}
}

func TestExtract_Empty(t *testing.T) {
	citations := Extract("No citations in this text at all.")
	if len(citations) != 0 {
		t.Errorf("Extract() found %d citations, want 0", len(citations))
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://doi.org/10.1000/XYZ", "10.1000/xyz"},
		{"http://dx.doi.org/10.1000/XYZ", "10.1000/xyz"},
		{"10.1000/XYZ", "10.1000/xyz"},
		{"  10.1000/xyz  ", "10.1000/xyz"},
	}
	for _, tt := range tests {
		got := NormalizeDOI(tt.input)
		if got != tt.want {
			t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeDOI_Idempotent(t *testing.T) {
	input := "https://doi.org/10.1000/ABC"
	once := NormalizeDOI(input)
	twice := NormalizeDOI(once)
	if once != twice {
		t.Errorf("NormalizeDOI is not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestFormat_APA_Elision(t *testing.T) {
	record := Record{
		Title:   "A Study of Many Authors",
		Authors: []string{"A One", "B Two", "C Three", "D Four", "E Five", "F Six", "G Seven"},
		Year:    2024,
		Journal: "Journal of Examples",
	}
	formatted := Format(record, StyleAPA)
	if formatted == "" {
		t.Fatal("Format() returned empty string")
	}
	if !strings.Contains(formatted, "F Six, ... G Seven") {
		t.Errorf("Format() = %q, want the first six authors, an ellipsis, then the last author", formatted)
	}
	if strings.Contains(formatted, "& ") {
		t.Errorf("Format() = %q, want no \"&\" once the author list is elided", formatted)
	}
}

func TestValidateBibliography_ZeroCitations(t *testing.T) {
	v := NewValidator(nil)
	report, err := v.ValidateBibliography(context.Background(), "Plain text with no citations.")
	if err != nil {
		t.Fatalf("ValidateBibliography() error = %v", err)
	}
	if report.Total != 0 {
		t.Errorf("Total = %d, want 0", report.Total)
	}
	if report.ValidationRate != 1.0 {
		t.Errorf("ValidationRate = %v, want 1.0 for zero citations", report.ValidationRate)
	}
}

func TestValidateBibliography_NumberedOnly(t *testing.T) {
	v := NewValidator(nil)
	report, err := v.ValidateBibliography(context.Background(), "A claim [1] and another [2].")
	if err != nil {
		t.Fatalf("ValidateBibliography() error = %v", err)
	}
	if report.Total != 2 {
		t.Errorf("Total = %d, want 2", report.Total)
	}
	if report.Valid != 2 {
		t.Errorf("Valid = %d, want 2 (numbered citations pass format check)", report.Valid)
	}
}
