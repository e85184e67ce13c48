// Package layout reconstructs statement rows from positioned text tokens.
// It is the fallback path used when line-oriented textual extraction finds
// too few rows: tokens are clustered into rows by vertical position, column
// bands are inferred across the page set, and each row's cells are read out
// of its bands. Only token acquisition and row grouping live here; amount
// and date normalization stay with the textual pipeline so both paths share
// one set of normalizers.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// Token is one positioned text fragment from the recognition capability:
// text plus a normalized bounding box (0..1 in both axes) and a page index.
type Token struct {
	Text string
	X    float64 // left edge, normalized to page width
	Y    float64 // top edge, normalized to page height
	W    float64
	H    float64
	Page int
}

// TokenSource is the narrow interface to the page-rendering/recognition
// capability: image in, positioned text tokens out. The pipeline treats it
// as a single synchronous call returning the complete token set.
type TokenSource interface {
	Tokens() ([]Token, error)
}

// RawRow is a reconstructed row before normalization: cell text only.
type RawRow struct {
	Date        string
	Description string
	Amount      string
	Balance     string
}

// Result carries the reconstructed rows and the confidence score gating
// whether layout output replaces the textual result.
type Result struct {
	Rows       []RawRow
	Confidence float64 // rows recovered / total row groups
}

// rowTolerance is the vertical-center distance within which tokens belong to
// the same visual row, in normalized page units.
const rowTolerance = 0.008

// wideMoneySpread is the horizontal spread of money-token centers beyond
// which two money columns (amount + balance) are assumed.
const wideMoneySpread = 0.18

type tokenRow struct {
	page   int
	center float64
	tokens []Token
}

// Reconstruct clusters tokens into rows, infers column bands, and reads each
// row's date/description/amount/balance cells. Rows lacking a resolvable
// date or amount are dropped and count against confidence.
func Reconstruct(tokens []Token) *Result {
	if len(tokens) == 0 {
		return &Result{}
	}

	groups := clusterRows(tokens)
	bands, ok := inferBands(groups)
	if !ok {
		return &Result{Confidence: 0}
	}

	var rows []RawRow
	for _, g := range groups {
		row, ok := readRow(g, bands)
		if ok {
			rows = append(rows, row)
		}
	}

	return &Result{
		Rows:       rows,
		Confidence: float64(len(rows)) / float64(len(groups)),
	}
}

// clusterRows groups tokens by vertical center within rowTolerance, per
// page, and sorts each row left to right.
func clusterRows(tokens []Token) []tokenRow {
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return vCenter(sorted[i]) < vCenter(sorted[j])
	})

	var groups []tokenRow
	for _, tok := range sorted {
		c := vCenter(tok)
		if n := len(groups); n > 0 {
			last := &groups[n-1]
			if last.page == tok.Page && math.Abs(last.center-c) <= rowTolerance {
				last.tokens = append(last.tokens, tok)
				continue
			}
		}
		groups = append(groups, tokenRow{page: tok.Page, center: c, tokens: []Token{tok}})
	}

	for i := range groups {
		toks := groups[i].tokens
		sort.Slice(toks, func(a, b int) bool { return toks[a].X < toks[b].X })
	}
	return groups
}

func vCenter(t Token) float64 { return t.Y + t.H/2 }
func hCenter(t Token) float64 { return t.X + t.W/2 }

// bands holds the inferred horizontal column geometry shared by all pages.
type bands struct {
	dateCenter    float64
	dateRight     float64
	amountCenter  float64
	balanceCenter float64
	hasBalance    bool
	moneyLeft     float64
}

// inferBands derives the column bands from token statistics across the whole
// page set: the date band centers on the median date-token position; a wide
// money spread splits amount (left cluster) from balance (right cluster).
func inferBands(groups []tokenRow) (bands, bool) {
	var dateCenters, dateRights, moneyCenters []float64
	for _, g := range groups {
		for _, tok := range g.tokens {
			text := strings.TrimSpace(tok.Text)
			switch {
			case patterns.StartsWithDate(text):
				dateCenters = append(dateCenters, hCenter(tok))
				dateRights = append(dateRights, tok.X+tok.W)
			case patterns.IsMoneyOnly(text):
				moneyCenters = append(moneyCenters, hCenter(tok))
			}
		}
	}
	if len(dateCenters) == 0 || len(moneyCenters) == 0 {
		return bands{}, false
	}

	b := bands{
		dateCenter: median(dateCenters),
		dateRight:  median(dateRights),
	}

	sort.Float64s(moneyCenters)
	spread := moneyCenters[len(moneyCenters)-1] - moneyCenters[0]
	if spread > wideMoneySpread {
		// Two money columns: split the centers at the widest internal gap.
		split := widestGapIndex(moneyCenters)
		b.amountCenter = median(moneyCenters[:split])
		b.balanceCenter = median(moneyCenters[split:])
		b.hasBalance = true
		b.moneyLeft = moneyCenters[0]
	} else {
		b.amountCenter = median(moneyCenters)
		b.moneyLeft = moneyCenters[0]
	}
	return b, true
}

func widestGapIndex(sorted []float64) int {
	best, bestGap := 1, 0.0
	for i := 1; i < len(sorted); i++ {
		if gap := sorted[i] - sorted[i-1]; gap > bestGap {
			bestGap = gap
			best = i
		}
	}
	return best
}

func median(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// bandTolerance is how far a token center may sit from a band center and
// still belong to it.
const bandTolerance = 0.08

// readRow reads one token row against the inferred bands. The description
// occupies the gap between the date band's right edge and the nearest money
// band's left side.
func readRow(g tokenRow, b bands) (RawRow, bool) {
	var row RawRow
	var descParts []string

	for _, tok := range g.tokens {
		text := strings.TrimSpace(tok.Text)
		if text == "" {
			continue
		}
		center := hCenter(tok)

		switch {
		case patterns.StartsWithDate(text) && math.Abs(center-b.dateCenter) <= bandTolerance:
			if row.Date == "" {
				row.Date = text
			}
		case patterns.IsMoneyOnly(text) && b.hasBalance && math.Abs(center-b.balanceCenter) <= bandTolerance:
			row.Balance = text
		case patterns.IsMoneyOnly(text) && math.Abs(center-b.amountCenter) <= bandTolerance:
			if row.Amount == "" {
				row.Amount = text
			}
		case center > b.dateRight-bandTolerance && center < b.moneyLeft+bandTolerance:
			descParts = append(descParts, text)
		}
	}

	if row.Date == "" || row.Amount == "" {
		return RawRow{}, false
	}
	row.Description = strings.Join(descParts, " ")
	if row.Description == "" {
		return RawRow{}, false
	}
	return row, true
}
