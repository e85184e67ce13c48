package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// Period is the detected statement coverage range, used only to resolve
// missing years in ambiguous dates and to date synthetic summary rows.
// Days are optional (zero when the header quoted month/year only).
type Period struct {
	StartMonth int
	StartYear  int
	StartDay   int
	EndMonth   int
	EndYear    int
	EndDay     int
}

// StartDate returns the period start as a time, defaulting a missing day to 1.
func (p *Period) StartDate() time.Time {
	day := p.StartDay
	if day == 0 {
		day = 1
	}
	return time.Date(p.StartYear, time.Month(p.StartMonth), day, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the period end as a time, defaulting a missing day to the
// last day of the month.
func (p *Period) EndDate() time.Time {
	day := p.EndDay
	if day == 0 {
		firstOfNext := time.Date(p.EndYear, time.Month(p.EndMonth)+1, 1, 0, 0, 0, 0, time.UTC)
		day = firstOfNext.AddDate(0, 0, -1).Day()
	}
	return time.Date(p.EndYear, time.Month(p.EndMonth), day, 0, 0, 0, 0, time.UTC)
}

// ResolveYear resolves the year of a bare month/day using the period. When
// the period crosses a year boundary, months at or after the start month
// belong to the start year and earlier months to the end year.
func (p *Period) ResolveYear(month int) int {
	if p.StartYear == p.EndYear {
		return p.StartYear
	}
	if month >= p.StartMonth {
		return p.StartYear
	}
	return p.EndYear
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseDateToken breaks a date token into month/day/year components. Year is
// zero when the token carries none. Two-digit years pivot at 70.
func parseDateToken(tok string) (month, day, year int, ok bool) {
	tok = strings.TrimSpace(tok)

	if m := patterns.DateStart.FindStringSubmatch(tok); m != nil {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			year = expandYear(m[3])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return 0, 0, 0, false
		}
		return month, day, year, true
	}

	if m := patterns.MonthNameStart.FindStringSubmatch(tok); m != nil {
		month = monthNames[strings.ToLower(m[1][:3])]
		day, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if month == 0 || day < 1 || day > 31 {
			return 0, 0, 0, false
		}
		return month, day, year, true
	}

	return 0, 0, 0, false
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 4 {
		return y
	}
	if y >= 70 {
		return 1900 + y
	}
	return 2000 + y
}

// singleDateLabels anchor a labeled single date usable as a degenerate
// period when no explicit range header exists.
var singleDateLabels = []string{
	"statement date", "billing date", "statement closing date", "as of",
}

// balanceContext gates "as of" dates: the label is only trusted near
// balance/principal/loan wording, since "as of" appears in much unrelated
// prose.
var balanceContext = []string{"balance", "principal", "loan"}

// DetectPeriod scans for an explicit date-range header, or failing that a
// labeled single date, anchoring year resolution for the whole document.
// Absence is valid; the caller falls back to the most plausible year.
func DetectPeriod(lines []string) *Period {
	for _, line := range lines {
		if line == PageBreak {
			continue
		}
		left, right, ok := patterns.SplitRange(line)
		if !ok {
			continue
		}
		sm, sd, sy, ok1 := parseDateToken(left)
		em, ed, ey, ok2 := parseDateToken(right)
		if !ok1 || !ok2 {
			continue
		}
		// A range with neither side carrying a year cannot anchor anything.
		if sy == 0 && ey == 0 {
			continue
		}
		if sy == 0 {
			sy = ey
			if sm > em {
				sy = ey - 1
			}
		}
		if ey == 0 {
			ey = sy
			if em < sm {
				ey = sy + 1
			}
		}
		return &Period{
			StartMonth: sm, StartYear: sy, StartDay: sd,
			EndMonth: em, EndYear: ey, EndDay: ed,
		}
	}

	for _, line := range lines {
		if line == PageBreak {
			continue
		}
		lower := strings.ToLower(line)
		matched := false
		for _, label := range singleDateLabels {
			if !patterns.ContainsPhrase(lower, label) {
				continue
			}
			if label == "as of" && !containsAnyFold(lower, balanceContext) {
				continue
			}
			matched = true
			break
		}
		if !matched {
			continue
		}
		tok := patterns.DateAnywhere.FindString(line)
		if tok == "" {
			continue
		}
		m, d, y, ok := parseDateToken(tok)
		if !ok || y == 0 {
			continue
		}
		return &Period{
			StartMonth: m, StartYear: y, StartDay: d,
			EndMonth: m, EndYear: y, EndDay: d,
		}
	}

	return nil
}

// MostPlausibleYear returns the 4-digit year found anywhere in the document
// closest to the current calendar year, ties broken by first occurrence.
// Returns zero when the document quotes no year at all.
func MostPlausibleYear(lines []string, now time.Time) int {
	currentYear := now.Year()
	best := 0
	bestDist := 1 << 30
	for _, line := range lines {
		if line == PageBreak {
			continue
		}
		for _, m := range patterns.YearAnywhere.FindAllString(line, -1) {
			y, _ := strconv.Atoi(m)
			dist := y - currentYear
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist {
				best = y
				bestDist = dist
			}
		}
	}
	return best
}

// NormalizeDate canonicalizes raw date text to MM/dd/yyyy. Missing years are
// resolved via the period, then the fallback year; a date that still cannot
// be resolved is passed through unmodified rather than invented.
func NormalizeDate(raw string, period *Period, fallbackYear int) string {
	m, d, y, ok := parseDateToken(raw)
	if !ok {
		return raw
	}
	if y == 0 {
		switch {
		case period != nil:
			y = period.ResolveYear(m)
		case fallbackYear != 0:
			y = fallbackYear
		default:
			return raw
		}
	}
	return fmt.Sprintf("%02d/%02d/%04d", m, d, y)
}

// parseCanonicalDate parses an MM/dd/yyyy canonical date string.
func parseCanonicalDate(s string) (time.Time, bool) {
	t, err := time.Parse("01/02/2006", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func containsAnyFold(haystackLower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystackLower, n) {
			return true
		}
	}
	return false
}
