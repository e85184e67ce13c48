// Package patterns is the shared registry of token recognizers used across
// the extraction pipeline: date tokens, money tokens, noise lines, and
// label-phrase matching. Patterns are compiled once and shared immutably,
// safe for concurrent use.
package patterns

import (
	"regexp"
	"strings"
)

var (
	// DateStart matches a numeric date at the very start of a line:
	// M/D, MM/DD, M-D, with an optional 2- or 4-digit year.
	DateStart = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2}|\d{4}))?\b`)

	// MonthNameStart matches "Jan 5", "January 5, 2026" at the start of a line.
	MonthNameStart = regexp.MustCompile(`(?i)^(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{1,2})(?:,?\s+(\d{4}))?\b`)

	// DateAnywhere matches a numeric or month-name date token anywhere in a line.
	DateAnywhere = regexp.MustCompile(`(?i)\b(?:\d{1,2}[/-]\d{1,2}(?:[/-](?:\d{2}|\d{4}))?|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:,?\s+\d{4})?)\b`)

	// MoneyAnywhere matches a currency amount anywhere in a line: optional
	// dollar sign, required cents, optional negativity markers (parentheses,
	// leading/trailing minus) and CR/DR suffixes. The integer part accepts
	// both comma-grouped and plain digit runs; statements render "2,500.00"
	// and "2500.00" interchangeably.
	MoneyAnywhere = regexp.MustCompile(`[-(]?\s*\$?\s*-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}\)?(?:\s*-)?(?:\s*(?:CR|DR))?`)

	// MoneyOnly matches a line that is a single amount and nothing else.
	MoneyOnly = regexp.MustCompile(`^[-(]?\s*\$?\s*-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}\)?(?:\s*-)?(?:\s*(?:CR|DR))?$`)

	// Percent matches a percentage token such as "24.99%" or "5 %".
	Percent = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,4})?)\s*%`)

	// YearAnywhere matches a plausible 4-digit calendar year.
	YearAnywhere = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	// pageNumber matches footer page markers: "Page 3", "Page 3 of 12", "- 3 -".
	pageNumber = regexp.MustCompile(`(?i)^(?:page\s+\d+(?:\s+of\s+\d+)?|-?\s*\d+\s*-?)$`)

	// blankPageNotice matches intentionally-blank-page boilerplate.
	blankPageNotice = regexp.MustCompile(`(?i)this\s+page\s+(?:is\s+)?(?:intentionally|left)\s+(?:intentionally\s+)?blank`)

	// footnoteMarker matches footnote/legal lines that never carry rows.
	footnoteMarker = regexp.MustCompile(`(?i)^(?:\*+|\d\))\s|member\s+fdic|equal\s+housing|continued\s+on\s+(?:next\s+page|reverse)`)

	// rangeConnector splits "date through date" period headers.
	rangeConnector = regexp.MustCompile(`(?i)\s+(?:through|thru|to)\s+|\s*[–—-]\s*`)
)

// FindMoney returns every money token in the line, in order.
func FindMoney(line string) []string {
	return MoneyAnywhere.FindAllString(line, -1)
}

// IsMoneyOnly reports whether the trimmed line is a single amount token.
func IsMoneyOnly(line string) bool {
	return MoneyOnly.MatchString(strings.TrimSpace(line))
}

// StartsWithDate reports whether the line opens with a recognizable date.
func StartsWithDate(line string) bool {
	line = strings.TrimSpace(line)
	return DateStart.MatchString(line) || MonthNameStart.MatchString(line)
}

// IsNoise reports whether the line is page furniture: page numbers, blank
// page notices, footnotes, or legal boilerplate.
func IsNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	return pageNumber.MatchString(trimmed) ||
		blankPageNotice.MatchString(trimmed) ||
		footnoteMarker.MatchString(trimmed)
}

// SplitRange splits a "dateToken through dateToken" line into its two date
// halves. Returns false if the line does not contain a range connector with
// date tokens on both sides.
func SplitRange(line string) (string, string, bool) {
	parts := rangeConnector.Split(line, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	left := DateAnywhere.FindString(parts[0])
	right := DateAnywhere.FindString(parts[1])
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// LabelPhrase compiles a case-insensitive matcher for a multi-word label in
// which any whitespace run (including non-breaking variants already rewritten
// to spaces) may separate the words. Centralized so every label family
// tolerates statement renderers that pad labels with odd spacing.
func LabelPhrase(words ...string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(escaped, `\s+`))
}

// ContainsPhrase reports whether any of the phrases appears in the line with
// flexible inter-word whitespace. Phrases are given as space-separated words.
func ContainsPhrase(line string, phrases ...string) bool {
	for _, phrase := range phrases {
		re := phraseCache(phrase)
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

var phraseRegistry = map[string]*regexp.Regexp{}

// phraseCache returns the compiled flexible-whitespace matcher for a phrase.
// The registry is populated at init time by RegisterPhrases; lookups after
// init are read-only and safe for concurrent use.
func phraseCache(phrase string) *regexp.Regexp {
	if re, ok := phraseRegistry[phrase]; ok {
		return re
	}
	return LabelPhrase(strings.Fields(phrase)...)
}

// RegisterPhrases precompiles phrase matchers into the shared registry.
// Must only be called from package init functions.
func RegisterPhrases(phrases ...string) {
	for _, phrase := range phrases {
		phraseRegistry[phrase] = LabelPhrase(strings.Fields(phrase)...)
	}
}
