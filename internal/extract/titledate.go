package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TitleDate is the result of splitting a card title into its clean text and
// any embedded date token.
type TitleDate struct {
	CleanTitle string
	Date       *time.Time
}

// monthNames maps lowercase month prefixes to months. Full names share the
// same three-letter prefix so a prefix lookup covers both.
var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

const monthPattern = `(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)`

// Date token shapes found in MySideline card titles, most specific first.
// Each pattern is matched against the already-stripped title so a bare-year
// pattern never re-matches the year of a fuller date.
var (
	reDateRange = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s*[-\x{2013}\x{2014}]\s*(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthPattern + `)\.?\s+(\d{4})\b`)
	reDateSlash = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reDateDMY   = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(` + monthPattern + `)\.?\s+(\d{4})\b`)
	reDateMY    = regexp.MustCompile(`(?i)\b(` + monthPattern + `)\.?\s+(\d{4})\b`)
	// Bare year must not borrow the year out of a rejected fuller token
	// like "31/02/2025", so adjacent date punctuation disqualifies it.
	reDateYear = regexp.MustCompile(`(?:^|[^0-9/.\-])(20\d{2})(?:$|[^0-9/.\-])`)

	reSpaces = regexp.MustCompile(`\s+`)
	// Unicode space variants MySideline titles have been seen to carry
	unicodeSpaces = strings.NewReplacer(
		" ", " ", " ", " ", " ", " ", " ", " ", "　", " ",
	)
)

// ParseTitleDate strips embedded date tokens from a raw card title and
// returns the cleaned title together with the earliest date found. Ranges
// contribute their start day. Same input always yields the same output.
func ParseTitleDate(raw string) TitleDate {
	title := strings.TrimSpace(unicodeSpaces.Replace(raw))
	title = reSpaces.ReplaceAllString(title, " ")

	var dates []time.Time

	// strip repeatedly matches re against the title, recording each parsed
	// date and cutting the matched group's span out of the text. group 0 is
	// the whole match.
	strip := func(re *regexp.Regexp, group int, parse func(m []string) (time.Time, bool)) {
		from := 0
		for from <= len(title) {
			loc := re.FindStringSubmatchIndex(title[from:])
			if loc == nil {
				return
			}
			for i, v := range loc {
				if v >= 0 {
					loc[i] = v + from
				}
			}
			m := matchGroups(title, loc)
			d, ok := parse(m)
			if !ok {
				// Not a real date; leave its text in place and keep looking
				// past it for a later token of the same shape.
				from = loc[1]
				continue
			}
			dates = append(dates, d)
			title = removeSpan(title, loc[2*group], loc[2*group+1])
			from = 0
		}
	}

	strip(reDateRange, 0, func(m []string) (time.Time, bool) {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[4])
		return makeDate(year, monthOf(m[3]), day)
	})
	strip(reDateSlash, 0, func(m []string) (time.Time, bool) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month < 1 || month > 12 {
			return time.Time{}, false
		}
		return makeDate(year, time.Month(month), day)
	})
	strip(reDateDMY, 0, func(m []string) (time.Time, bool) {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		return makeDate(year, monthOf(m[2]), day)
	})
	strip(reDateMY, 0, func(m []string) (time.Time, bool) {
		year, _ := strconv.Atoi(m[2])
		return makeDate(year, monthOf(m[1]), 1)
	})
	strip(reDateYear, 1, func(m []string) (time.Time, bool) {
		year, _ := strconv.Atoi(m[1])
		return makeDate(year, time.January, 1)
	})

	title = tidyTitle(title)

	if len(dates) == 0 {
		return TitleDate{CleanTitle: title}
	}
	earliest := dates[0]
	for _, d := range dates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}
	return TitleDate{CleanTitle: title, Date: &earliest}
}

func monthOf(name string) time.Month {
	key := strings.ToLower(name)
	if len(key) > 3 {
		key = key[:3]
	}
	return monthNames[key]
}

// makeDate builds a UTC date and rejects impossible combinations such as
// 31 Feb, which time.Date would silently normalise into March.
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month == 0 || day < 1 || day > 31 || year < 2000 || year > 2099 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}

func matchGroups(s string, loc []int) []string {
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}

// removeSpan cuts [start,end) out of s along with any punctuation that was
// only there to set the date off from the title, e.g. the dash in
// "Carnival - 15/08/2025" or the parens in "Carnival (Jun 2025)".
func removeSpan(s string, start, end int) string {
	left := strings.TrimRight(s[:start], " \t-–—,:;(")
	right := strings.TrimLeft(s[end:], " \t-–—,:;)")

	if left == "" {
		return right
	}
	if right == "" {
		return left
	}
	return left + " " + right
}

func tidyTitle(s string) string {
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -–—,:;")
	return strings.TrimSpace(s)
}
