// Package readability scores text with a language-aware Flesch Reading
// Ease variant: the Latin branch counts syllables per word, the CJK
// branch substitutes character count, selected by the ratio of CJK
// characters in the text.
package readability

import (
	"regexp"
	"strings"
	"unicode"

	sharedmath "github.com/jordigilh/docflow/pkg/shared/math"
)

// Report is analyze()'s response shape.
type Report struct {
	Score               float64  `json:"score"`
	Grade               string   `json:"grade"`
	Sentences           int      `json:"sentences"`
	Words               int      `json:"words"`
	SyllablesOrChars    int      `json:"syllables_or_chars"`
	AvgSentenceLength   float64  `json:"avg_sentence_length"`
	AvgSyllablesPerWord float64  `json:"avg_syllables_per_word"`
	Level               string   `json:"level"`
	Suggestions         []string `json:"suggestions"`
	IsCJK               bool     `json:"-"`
}

var (
	latinSentenceSplit = regexp.MustCompile(`[.!?]+`)
	cjkSentenceSplit   = regexp.MustCompile(`[。！？；\n]+`)
	latinWordSplit     = regexp.MustCompile(`[\p{L}\p{N}'-]+`)
)

func isCJKRune(r rune) bool {
	return unicode.In(r,
		unicode.Han,
		unicode.Hiragana,
		unicode.Katakana,
		unicode.Hangul,
	)
}

// cjkRatio is the fraction of non-whitespace characters that are CJK.
func cjkRatio(text string) float64 {
	var cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJKRune(r) {
			cjk++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(cjk) / float64(total)
}

func Analyze(text string) Report {
	isCJK := cjkRatio(text) > 0.3

	var sentences []string
	if isCJK {
		sentences = splitNonEmpty(cjkSentenceSplit, text)
	} else {
		sentences = splitNonEmpty(latinSentenceSplit, text)
	}
	sentenceCount := len(sentences)
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	var words []string
	var syllablesOrChars int
	if isCJK {
		words = tokenizeCJK(text)
		syllablesOrChars = countCJKChars(text)
	} else {
		words = latinWordSplit.FindAllString(text, -1)
		for _, w := range words {
			syllablesOrChars += countSyllables(w)
		}
	}
	wordCount := len(words)
	if wordCount == 0 {
		wordCount = 1
	}

	avgSentenceLength := float64(wordCount) / float64(sentenceCount)
	avgSyllablesPerWord := float64(syllablesOrChars) / float64(wordCount)

	score := 206.835 - 1.015*avgSentenceLength - 84.6*avgSyllablesPerWord
	score = sharedmath.Clamp(score, 0, 100)

	report := Report{
		Score:               score,
		Grade:               gradeFor(score),
		Sentences:           sentenceCount,
		Words:               wordCount,
		SyllablesOrChars:    syllablesOrChars,
		AvgSentenceLength:   avgSentenceLength,
		AvgSyllablesPerWord: avgSyllablesPerWord,
		Level:               levelFor(score),
		IsCJK:               isCJK,
	}
	report.Suggestions = suggestionsFor(report, isCJK)
	return report
}

func MeetsThreshold(text string, threshold float64) bool {
	return Analyze(text).Score >= threshold
}

func splitNonEmpty(re *regexp.Regexp, text string) []string {
	parts := re.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenizeCJK(text string) []string {
	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isCJKRune(r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

func countCJKChars(text string) int {
	n := 0
	for _, r := range text {
		if isCJKRune(r) {
			n++
		}
	}
	return n
}

var vowelGroup = regexp.MustCompile(`(?i)[aeiouy]+`)

// countSyllables counts vowel groups in a word, subtracting one for a
// trailing silent 'e' (not for an "-le" ending, and only when the word
// has more than one group), with a floor of 1.
func countSyllables(word string) int {
	lower := strings.ToLower(word)
	groups := vowelGroup.FindAllString(lower, -1)
	count := len(groups)

	if strings.HasSuffix(lower, "e") && !strings.HasSuffix(lower, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

func gradeFor(score float64) string {
	switch {
	case score >= 90:
		return "5th grade"
	case score >= 80:
		return "6th grade"
	case score >= 70:
		return "7th grade"
	case score >= 60:
		return "8th-9th grade"
	case score >= 50:
		return "10th-12th grade"
	case score >= 30:
		return "college"
	default:
		return "college graduate"
	}
}

func levelFor(score float64) string {
	switch {
	case score >= 90:
		return "very easy"
	case score >= 80:
		return "easy"
	case score >= 70:
		return "moderate"
	case score >= 60:
		return "standard"
	case score >= 50:
		return "harder"
	case score >= 30:
		return "difficult"
	default:
		return "very difficult"
	}
}

func suggestionsFor(r Report, isCJK bool) []string {
	var suggestions []string
	complexityThreshold := 1.5
	if isCJK {
		complexityThreshold = 2.5
	}

	if r.AvgSentenceLength > 20 {
		suggestions = append(suggestions, "Consider shortening sentences; average sentence length exceeds 20 words")
	}
	if r.AvgSyllablesPerWord > complexityThreshold {
		suggestions = append(suggestions, "Consider simpler word choices; average word complexity is high")
	}
	return suggestions
}
