package extract

import "regexp"

// statePatterns matches Australian state tokens as whole words, either the
// full name or the abbreviation with optional dots ("N.S.W.", "Vic."). The
// word boundary sits before the optional trailing dot so dotted forms still
// anchor on the final letter, and "Vicarage" can never match VIC.
var statePatterns = []struct {
	code string
	re   *regexp.Regexp
}{
	{"ACT", regexp.MustCompile(`(?i)\b(?:australian\s+capital\s+territory|a\.?c\.?t\b\.?)`)},
	{"NSW", regexp.MustCompile(`(?i)\b(?:new\s+south\s+wales|n\.?s\.?w\b\.?)`)},
	{"NT", regexp.MustCompile(`(?i)\b(?:northern\s+territory|n\.?t\b\.?)`)},
	{"QLD", regexp.MustCompile(`(?i)\b(?:queensland|q\.?l\.?d\b\.?)`)},
	{"SA", regexp.MustCompile(`(?i)\b(?:south\s+australia|s\.?a\b\.?)`)},
	{"TAS", regexp.MustCompile(`(?i)\b(?:tasmania|t\.?a\.?s\b\.?)`)},
	{"VIC", regexp.MustCompile(`(?i)\b(?:victoria|v\.?i\.?c\b\.?)`)},
	{"WA", regexp.MustCompile(`(?i)\b(?:western\s+australia|w\.?a\b\.?)`)},
}

// ResolveState maps a free-form address string to an Australian state code,
// or "" when no state token occurs. When several tokens appear the one
// furthest into the string wins: composed addresses tend to repeat the
// suburb first and finish with "<suburb> <STATE> <postcode>".
func ResolveState(address string) string {
	if address == "" {
		return ""
	}

	best := -1
	code := ""
	for _, sp := range statePatterns {
		for _, loc := range sp.re.FindAllStringIndex(address, -1) {
			if loc[0] > best || (loc[0] == best && loc[1]-loc[0] > len(code)) {
				best = loc[0]
				code = sp.code
			}
		}
	}
	return code
}
