package citation

import (
	"fmt"
	"strings"
)

// Format renders record deterministically in the given style.
func Format(record Record, style Style) string {
	switch style {
	case StyleAPA:
		return formatAPA(record)
	case StyleMLA:
		return formatMLA(record)
	case StyleChicago:
		return formatChicago(record)
	default:
		return formatAPA(record)
	}
}

// formatAPA elides author lists past six with an ellipsis, using "&"
// before the final author.
func formatAPA(r Record) string {
	authors := apaAuthorList(r.Authors)
	return fmt.Sprintf("%s (%d). %s. %s.", authors, r.Year, r.Title, r.Journal)
}

func apaAuthorList(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	default:
		if len(authors) > 6 {
			return strings.Join(authors[:6], ", ") + ", ... " + authors[len(authors)-1]
		}
		return strings.Join(authors[:len(authors)-1], ", ") + ", & " + authors[len(authors)-1]
	}
}

// formatMLA inverts the first author's name and joins remaining authors
// with "and".
func formatMLA(r Record) string {
	authors := mlaAuthorList(r.Authors)
	return fmt.Sprintf("%s. \"%s.\" %s, %d.", authors, r.Title, r.Journal, r.Year)
}

func mlaAuthorList(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	first := invertName(authors[0])
	if len(authors) == 1 {
		return first
	}
	return first + ", and " + strings.Join(authors[1:], ", ")
}

func invertName(name string) string {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return name
	}
	last := parts[len(parts)-1]
	rest := strings.Join(parts[:len(parts)-1], " ")
	return last + ", " + rest
}

func formatChicago(r Record) string {
	authors := strings.Join(r.Authors, ", ")
	return fmt.Sprintf("%s. \"%s.\" %s %s (%d): %s.", authors, r.Title, r.Journal, r.Volume, r.Year, r.Pages)
}
