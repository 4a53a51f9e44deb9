package citation

import "context"

// Validator ties extraction and resolution together into the single
// validate_bibliography operation the Citation stage calls.
type Validator struct {
	resolver *Resolver
}

func NewValidator(resolver *Resolver) *Validator {
	return &Validator{resolver: resolver}
}

// ValidateBibliography extracts every citation from text and classifies
// each: numbered citations pass a format-only check (content is
// unverified without a bibliography to cross-reference); author-year
// citations pass when their best search match has relevance >= 80.
func (v *Validator) ValidateBibliography(ctx context.Context, text string) (BibliographyReport, error) {
	citations := Extract(text)

	report := BibliographyReport{Total: len(citations)}
	if report.Total == 0 {
		report.ValidationRate = 1.0
		return report, nil
	}

	for _, c := range citations {
		result := PerCitationResult{Citation: c}
		switch c.Kind {
		case KindNumbered:
			result.Valid = c.Payload != ""
			result.Reason = "numbered citation: format check only, content unverified"
		case KindAuthorYear:
			score, err := v.resolver.BestMatchScore(ctx, c.Payload)
			if err != nil {
				result.Valid = false
				result.Reason = "bibliographic lookup failed"
			} else {
				result.Valid = score >= 80
				result.Reason = "author-year match relevance score"
			}
		}

		report.PerCitation = append(report.PerCitation, result)
		if result.Valid {
			report.Valid++
		} else {
			report.Invalid++
		}
	}

	report.ValidationRate = float64(report.Valid) / float64(report.Total)
	return report, nil
}
