// Package pdftext is the narrow acquisition layer over the PDF library: it
// produces page texts for the line-oriented pipeline and positioned tokens
// for the layout fallback. Rendering and recognition internals stay behind
// this boundary; the pipeline only sees text in, tokens out.
package pdftext

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/harmonsoft/stmtstage/internal/extract"
	"github.com/harmonsoft/stmtstage/internal/layout"
)

// ExtractPages reads a PDF file and returns the text of each page. Row-based
// extraction is tried first for layout preservation, falling back to
// coordinate-grouped content objects. The library can panic on malformed
// files, so the whole pass is recovered into an error.
func ExtractPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed on %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages = extractByRow(r, numPages)
	if totalLen(pages) > 0 {
		return pages, nil
	}

	pages = extractByContent(r, numPages)
	if totalLen(pages) == 0 {
		return nil, fmt.Errorf("pdf yielded no text; the file may be image-based or use undecodable font encodings")
	}
	return pages, nil
}

// Document returns the whole PDF as one string with page-break sentinels,
// the input form the extraction pipeline expects.
func Document(path string) (string, error) {
	pages, err := ExtractPages(path)
	if err != nil {
		return "", err
	}
	return extract.JoinPages(pages), nil
}

func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			var parts []string
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent groups raw text objects by Y coordinate into rows, then
// sorts each row by X.
func extractByContent(r *pdf.Reader, numPages int) []string {
	const yTolerance = 3.0

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts := page.Content().Text
		if len(texts) == 0 {
			continue
		}

		sort.Slice(texts, func(a, b int) bool {
			if texts[a].Y != texts[b].Y {
				return texts[a].Y > texts[b].Y // PDF Y grows upward
			}
			return texts[a].X < texts[b].X
		})

		var lines []string
		var current []string
		lastY := texts[0].Y
		for _, t := range texts {
			if lastY-t.Y > yTolerance {
				if line := strings.TrimSpace(strings.Join(current, "")); line != "" {
					lines = append(lines, line)
				}
				current = current[:0]
				lastY = t.Y
			}
			current = append(current, t.S)
		}
		if line := strings.TrimSpace(strings.Join(current, "")); line != "" {
			lines = append(lines, line)
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func totalLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}

// TokenSource adapts a PDF file to the layout fallback's token interface.
// Tokens are read once per call, synchronously, as a complete set.
type TokenSource struct {
	path string
}

// NewTokenSource creates a token source for the given PDF path.
func NewTokenSource(path string) *TokenSource {
	return &TokenSource{path: path}
}

// Tokens extracts positioned text tokens across all pages, with bounding
// boxes normalized to page extent and Y measured top-down, the geometry the
// layout package clusters on.
func (s *TokenSource) Tokens() (tokens []layout.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library crashed on %s: %v", s.path, r)
		}
	}()

	f, r, err := pdf.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts := page.Content().Text
		if len(texts) == 0 {
			continue
		}

		minX, maxX := texts[0].X, texts[0].X
		minY, maxY := texts[0].Y, texts[0].Y
		for _, t := range texts {
			minX = min(minX, t.X)
			maxX = max(maxX, t.X+t.W)
			minY = min(minY, t.Y)
			maxY = max(maxY, t.Y+t.FontSize)
		}
		spanX := maxX - minX
		spanY := maxY - minY
		if spanX <= 0 || spanY <= 0 {
			continue
		}

		// Merge adjacent fragments on the same baseline into word tokens
		// before normalizing; content streams often emit per-glyph pieces.
		for _, w := range mergeFragments(texts) {
			tokens = append(tokens, layout.Token{
				Text: w.text,
				X:    (w.x - minX) / spanX,
				Y:    1 - (w.y+w.h-minY)/spanY, // flip to top-down
				W:    w.w / spanX,
				H:    w.h / spanY,
				Page: i,
			})
		}
	}
	return tokens, nil
}

type fragment struct {
	text       string
	x, y, w, h float64
}

// mergeFragments joins text pieces sharing a baseline whose horizontal gap
// is smaller than half the font size.
func mergeFragments(texts []pdf.Text) []fragment {
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].Y != sorted[b].Y {
			return sorted[a].Y > sorted[b].Y
		}
		return sorted[a].X < sorted[b].X
	})

	var frags []fragment
	for _, t := range sorted {
		h := t.FontSize
		if h == 0 {
			h = 10
		}
		if n := len(frags); n > 0 {
			prev := &frags[n-1]
			sameBaseline := prev.y == t.Y
			gap := t.X - (prev.x + prev.w)
			if sameBaseline && gap >= 0 && gap < h/2 {
				prev.text += t.S
				prev.w = t.X + t.W - prev.x
				continue
			}
			if sameBaseline && gap >= h/2 && gap < h*2 && !strings.HasSuffix(prev.text, " ") {
				// Close enough to be the next word of the same cell.
				prev.text += " " + t.S
				prev.w = t.X + t.W - prev.x
				continue
			}
		}
		frags = append(frags, fragment{text: t.S, x: t.X, y: t.Y, w: t.W, h: h})
	}

	out := frags[:0]
	for _, f := range frags {
		f.text = strings.TrimSpace(f.text)
		if f.text != "" {
			out = append(out, f)
		}
	}
	return out
}
