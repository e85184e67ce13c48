package extract

import (
	"strconv"
	"strings"

	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// rateCandidate is one percentage token with its scored local context.
type rateCandidate struct {
	value float64
	scale int
	score int
	line  int
}

// Context vocabularies for rate-candidate classification.
var (
	rateHeaderCues = []string{
		"apr", "annual percentage rate", "interest rate", "interest charge calculation",
	}
	purchaseCues = []string{"purchase", "purchases"}
	rewardCues   = []string{
		"reward", "rewards", "cash back", "cashback", "points", "miles",
		"bonus category",
	}
	fxFeeCues = []string{
		"foreign", "exchange", "conversion fee", "transaction fee", "currency",
	}
	bankingCues = []string{
		"savings", "checking", "apy", "annual percentage yield", "deposit",
	}
	liabilityCues = []string{"loan", "mortgage", "principal", "note rate"}
	penaltyCues   = []string{"penalty", "late payment", "minimum interest", "minimum charge"}
	priorCues     = []string{"previous", "prior period", "last period", "was"}
	advanceCues   = []string{"cash advance", "balance transfer"}
	promoCues     = []string{"promotional", "intro", "introductory", "0% intro"}
	noInterest    = []string{"no interest", "interest-free", "interest free"}
)

// rateWindow builds the local text window around a candidate line.
func rateWindow(lines []string, idx int) string {
	lo, hi := idx-1, idx+1
	if lo < 0 {
		lo = 0
	}
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	var b strings.Builder
	for i := lo; i <= hi; i++ {
		if lines[i] == PageBreak {
			continue
		}
		b.WriteString(strings.ToLower(lines[i]))
		b.WriteString(" ")
	}
	return b.String()
}

// ExtractRate selects the most plausible interest-rate/APR percentage from
// the document. It is a scored-candidate extractor, not first-match: a
// statement may quote promotional rates, rewards percentages, penalty APRs,
// and FX fees, and each candidate's local window decides whether it survives.
// Returns the rate, its decimal scale, and whether any candidate survived.
func ExtractRate(lines []string) (float64, int, bool) {
	if value, scale, ok := interestChargesSubScan(lines); ok {
		return value, scale, true
	}

	var candidates []rateCandidate
	for i, line := range lines {
		if line == PageBreak {
			continue
		}
		for _, m := range patterns.Percent.FindAllStringSubmatch(line, -1) {
			value, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			cand, ok := scoreCandidate(lines, i, line, value, decimalScale(m[1]))
			if ok {
				candidates = append(candidates, cand)
			}
		}
	}

	if len(candidates) == 0 {
		return 0, 0, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score || (c.score == best.score && c.value < best.value) {
			// Ties break toward the lower rate, avoiding penalty-tier
			// overestimation.
			best = c
		}
	}
	return best.value, best.scale, true
}

// scoreCandidate computes the context flags and score for one percentage.
// Rejections return ok=false; demotions lower the score but keep the
// candidate alive.
func scoreCandidate(lines []string, idx int, line string, value float64, scale int) (rateCandidate, bool) {
	window := rateWindow(lines, idx)
	lower := strings.ToLower(line)

	isReward := containsAnyFold(window, rewardCues)
	isFX := containsAnyFold(window, fxFeeCues)
	isBanking := containsAnyFold(window, bankingCues)
	isLiability := containsAnyFold(window, liabilityCues)
	isPenalty := containsAnyFold(window, penaltyCues)
	isPrior := containsAnyFold(window, priorCues)
	isAdvance := containsAnyFold(window, advanceCues)
	isPromo := containsAnyFold(window, promoCues)
	isPurchase := containsAnyFold(window, purchaseCues)
	hasHeader := containsAnyFold(window, rateHeaderCues)

	// Outright rejections.
	if isReward || isFX || containsAnyFold(window, noInterest) {
		return rateCandidate{}, false
	}
	if isBanking && !isPurchase && !hasHeader && !isLiability {
		return rateCandidate{}, false
	}
	if value == 0 && !isPromo {
		return rateCandidate{}, false
	}
	if value != 0 && (value < 0.5 || value > 60) {
		return rateCandidate{}, false
	}

	score := 0
	if isPurchase {
		score += 4
	}
	if hasHeader {
		score += 3
	}
	if isLiability {
		score += 2
	}
	if isPenalty {
		score -= 4
	}
	if isPrior {
		score -= 2
	}
	if isAdvance {
		score -= 2
	}
	if upper, bound := rangeUpperBound(lower, value); bound && upper {
		score -= 3
	}

	return rateCandidate{value: value, scale: scale, score: score, line: idx}, true
}

// rangeUpperBound reports whether the value is one end of an explicit
// "X% - Y%" range and, if so, whether it is the upper end.
func rangeUpperBound(lower string, value float64) (upper, inRange bool) {
	matches := patterns.Percent.FindAllStringSubmatch(lower, -1)
	if len(matches) < 2 {
		return false, false
	}
	first, err1 := strconv.ParseFloat(matches[0][1], 64)
	second, err2 := strconv.ParseFloat(matches[1][1], 64)
	if err1 != nil || err2 != nil {
		return false, false
	}
	connector := strings.Contains(lower, " to ") || strings.Contains(lower, "-") ||
		strings.Contains(lower, "–")
	if !connector {
		return false, false
	}
	hi := first
	if second > hi {
		hi = second
	}
	return value == hi && first != second, true
}

// interestChargesSubScanWindow bounds how far past an "Interest Charges"
// table header the purchases-row scan looks.
const interestChargesSubScanWindow = 15

// interestChargesSubScan implements the specialized table scan: anchored on
// an "Interest Charge" table header, it takes the first percentage following
// the word "purchases". When it succeeds it outranks the general scorer.
func interestChargesSubScan(lines []string) (float64, int, bool) {
	for i, line := range lines {
		if line == PageBreak {
			continue
		}
		lower := strings.ToLower(line)
		if !patterns.ContainsPhrase(lower, "interest charge") &&
			!patterns.ContainsPhrase(lower, "interest charges") {
			continue
		}

		sawPurchases := false
		for j := i; j < len(lines) && j <= i+interestChargesSubScanWindow; j++ {
			if lines[j] == PageBreak {
				break
			}
			l := strings.ToLower(lines[j])
			if strings.Contains(l, "purchase") {
				sawPurchases = true
			}
			if !sawPurchases {
				continue
			}
			if m := patterns.Percent.FindStringSubmatch(lines[j]); m != nil {
				value, err := strconv.ParseFloat(m[1], 64)
				if err != nil || value < 0.5 || value > 60 {
					continue
				}
				return value, decimalScale(m[1]), true
			}
		}
	}
	return 0, 0, false
}

// decimalScale counts the decimal places quoted for a rate ("24.99" → 2).
func decimalScale(s string) int {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
