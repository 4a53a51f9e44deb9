package citation

import "strings"

var doiURLPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
}

// NormalizeDOI strips known URL prefixes, lowercases, and trims s into
// its canonical form. Idempotent: NormalizeDOI(NormalizeDOI(s)) == NormalizeDOI(s).
func NormalizeDOI(s string) string {
	trimmed := strings.TrimSpace(s)
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(strings.ToLower(trimmed), prefix) {
			trimmed = trimmed[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(trimmed))
}
