package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KebabCase normalizes a user supplied name to lower kebab case, so that
// "Venue Cover", "venue_cover" and "VENUE-COVER" all become "venue-cover".
// Case folding is Unicode aware.
func KebabCase(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(cases.Fold().String(s)), "-")
}

// TitleCase turns a kebab or snake case name into words for display:
// "verification-document" -> "Verification Document".
func TitleCase(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
