package transform

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NewID creates a prefixed unique record ID, e.g. "txn-5f3a...".
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// SlugifyInstitution converts an institution name to a stable slug used in
// import IDs. Examples: "American Express" → "american-express",
// "Crédit Agricole" → "credit-agricole".
func SlugifyInstitution(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("institution name cannot be empty")
	}

	// Decompose and drop combining marks so accented characters survive as
	// their base letters.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, name)
	if err != nil {
		return "", fmt.Errorf("failed to normalize institution name %q: %w", name, err)
	}

	slug := strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(normalized), "-"), "-")
	if slug == "" {
		return "", fmt.Errorf("institution name %q contains no alphanumeric characters", name)
	}
	return slug, nil
}

// ImportID creates a deterministic-prefix import ID from the institution
// slug and the source filename, with a unique suffix.
func ImportID(institutionSlug, fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	base = slugStrip.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")
	if len(base) > 24 {
		base = base[:24]
	}
	if institutionSlug == "" {
		institutionSlug = "unorganized"
	}
	return fmt.Sprintf("imp-%s-%s-%s", institutionSlug, base, uuid.NewString()[:8])
}
