// Package filter decides whether a scraped card belongs in the masters
// rugby league carnival set.
package filter

import (
	"strings"
	"unicode/utf8"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

const touchMarker = "touch"

// Relevant reports whether a card and its normalised form pass the masters
// rugby league rule set: a usable title, and no trace of touch football in
// the title, subtitle, organiser email, or outbound links. Pure.
func Relevant(sc *model.ScrapedCard, ev *model.NormalisedEvent) bool {
	if utf8.RuneCountInString(ev.Title) < 5 {
		return false
	}
	for _, field := range []string{
		ev.Title,
		sc.Subtitle,
		ev.Organiser.Email,
		ev.Social.Facebook,
		ev.Social.Website,
	} {
		if strings.Contains(strings.ToLower(field), touchMarker) {
			return false
		}
	}
	return true
}
