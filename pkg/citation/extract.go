package citation

import "regexp"

var (
	numberedRe   = regexp.MustCompile(`\[(\d+)\]`)
	authorYearRe = regexp.MustCompile(`\(([A-Z][a-zA-Z\.\-]*(?:\s(?:et al\.|and|&)\s[A-Z][a-zA-Z\.\-]*)?),\s*(\d{4})\)`)
)

// Extract finds every numbered (`[n]`) and author-year (`(Name, YYYY)`)
// citation in text, unique by span: all numbered citations first, then
// all author-year citations, each group in order of first appearance.
func Extract(text string) []Citation {
	seen := make(map[string]bool)
	var out []Citation

	for _, m := range numberedRe.FindAllStringSubmatchIndex(text, -1) {
		span := text[m[0]:m[1]]
		if seen[span] {
			continue
		}
		seen[span] = true
		out = append(out, Citation{
			Kind:    KindNumbered,
			Span:    span,
			Payload: text[m[2]:m[3]],
		})
	}

	for _, m := range authorYearRe.FindAllStringSubmatchIndex(text, -1) {
		span := text[m[0]:m[1]]
		if seen[span] {
			continue
		}
		seen[span] = true
		out = append(out, Citation{
			Kind:    KindAuthorYear,
			Span:    span,
			Payload: text[m[2]:m[3]] + ", " + text[m[4]:m[5]],
		})
	}

	return out
}
