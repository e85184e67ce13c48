// Package extract implements the statement extraction pipeline: line
// normalization, the context state machine, row reconstruction, amount and
// date normalization, summary balance synthesis, and rate extraction. It
// turns raw document text into canonical five-field rows ready for a format
// parser. The pipeline is heuristic by design and degrades to partial rows
// or a diagnosable empty result rather than fabricating transactions.
package extract

import "strings"

// PageBreak is the reserved sentinel line separating pages in normalized
// input. Page-oriented sources insert it between page texts; the scanner
// resets context state whenever it is encountered.
const PageBreak = "\x0c"

// spaceNormalizer rewrites non-breaking and narrow space variants to
// ordinary spaces so label matching and tokenizing see uniform whitespace.
var spaceNormalizer = strings.NewReplacer(
	" ", " ", // no-break space
	" ", " ", // figure space
	" ", " ", // thin space
	" ", " ", // narrow no-break space
	"⁠", "", // word joiner
	"\t", " ",
)

// NormalizeLines turns raw document text into an ordered sequence of trimmed
// lines. Blank and whitespace-only lines are dropped; PageBreak sentinels are
// preserved as standalone lines. An empty document yields an empty sequence,
// which callers must treat as a hard failure.
func NormalizeLines(doc string) []string {
	if doc == "" {
		return nil
	}

	var lines []string
	for _, raw := range strings.Split(doc, "\n") {
		if strings.Contains(raw, PageBreak) {
			// A page break may share a physical line with text on either
			// side; split it out so the sentinel always stands alone.
			parts := strings.Split(raw, PageBreak)
			for i, part := range parts {
				if i > 0 {
					lines = append(lines, PageBreak)
				}
				if trimmed := strings.TrimSpace(spaceNormalizer.Replace(part)); trimmed != "" {
					lines = append(lines, trimmed)
				}
			}
			continue
		}

		trimmed := strings.TrimSpace(spaceNormalizer.Replace(raw))
		if trimmed == "" {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

// JoinPages concatenates page texts with PageBreak sentinels between them,
// producing the input NormalizeLines expects from page-oriented sources.
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n"+PageBreak+"\n")
}
