package reports

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Filter keeps the rows where any field, coerced to a string and lower-cased,
// contains query. An empty query returns rows unchanged.
func Filter(rows []Row, query string) []Row {
	if query == "" {
		return rows
	}
	lower := cases.Lower(language.Und)
	needle := lower.String(query)
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if rowContains(lower, row, needle) {
			out = append(out, row)
		}
	}
	return out
}

func rowContains(lower cases.Caser, row Row, needle string) bool {
	for _, v := range row {
		if strings.Contains(lower.String(Stringify(v)), needle) {
			return true
		}
	}
	return false
}
