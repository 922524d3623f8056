package compose

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// Humanize turns a category identifier of the form "<Label> <order>" into its
// display label: the trailing token is dropped, the rest is lower-cased and
// its first letter capitalized ("BACKGROUND colors 1" -> "Background colors").
// Identifiers without an order token are kept whole.
func Humanize(category string) string {
	fields := strings.Fields(category)
	if len(fields) > 1 {
		fields = fields[:len(fields)-1]
	}
	label := lower.String(strings.Join(fields, " "))
	if label == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(label)
	return upper.String(string(first)) + label[size:]
}
