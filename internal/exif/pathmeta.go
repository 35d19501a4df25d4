package exif

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Directory names like "2019-08-21 Beach Trip" carry both a date and tag
// words. The date part is a run of digits optionally broken by single dashes
// or spaces; it only counts when the run is at least six characters wide, so
// "35mm Scans" does not read as a date.
var dirDatePattern = regexp.MustCompile(`(\d+[- ]?\d+[- ]?\d+)([^/]*)`)

// stopwords are filler words never worth a tag of their own.
var stopwords = map[string]bool{
	"and": true, "at": true, "edits": true, "edit": true,
	"for": true, "from": true, "in": true, "of": true,
	"on": true, "the": true, "to": true, "with": true,
}

// ParseDirname derives tag words and an optional fallback date from the last
// segment of a photo's directory path.
func ParseDirname(dirname string) ([]string, *time.Time) {
	base := filepath.Base(dirname)
	if base == "." || base == string(filepath.Separator) {
		return nil, nil
	}

	words := base
	var taken *time.Time

	if loc := dirDatePattern.FindStringSubmatchIndex(base); loc != nil && isDateRun(base[loc[0]:]) {
		candidate := base[loc[2]:loc[3]]
		words = base[:loc[0]] + " " + base[loc[4]:loc[5]]
		taken = parseDirDate(candidate)
	}

	return splitTagWords(words), taken
}

// isDateRun reports whether the text opens with six characters of digits,
// dashes and spaces.
func isDateRun(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, c := range s[:6] {
		if !unicode.IsDigit(c) && c != '-' && c != ' ' {
			return false
		}
	}
	return true
}

var dirDateLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	"20060102",
	"2006-01",
	"2006",
}

func parseDirDate(candidate string) *time.Time {
	candidate = strings.TrimSpace(strings.ReplaceAll(candidate, " ", "-"))
	for _, layout := range dirDateLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return &t
		}
	}
	return nil
}

// splitTagWords breaks a directory name remainder into lowercase tag words.
// CamelCase humps split into separate words; stopwords and bare numbers are
// dropped.
func splitTagWords(s string) []string {
	s = splitCamelCase(s)

	rough := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tags []string
	for _, word := range rough {
		word = strings.ToLower(word)
		if stopwords[word] || isNumeric(word) {
			continue
		}
		tags = append(tags, word)
	}
	return tags
}

func splitCamelCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
