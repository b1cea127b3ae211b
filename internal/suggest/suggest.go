// Package suggest pre-fills the annotation form: OCR text extracted from
// the cropped region, fuzzy matching of typed subcategories against the
// schema, and scoring of a suggestion against the user-confirmed text.
package suggest

import (
	"image"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"

	"go-region-annotator/internal/logger"
)

// TextExtractor extracts text from a raster image.
type TextExtractor interface {
	ExtractText(img image.Image) (string, error)
}

// Suggester proposes annotation text for a cropped region. A nil extractor
// disables OCR; suggestions degrade to empty rather than blocking the
// session.
type Suggester struct {
	extractor TextExtractor
}

// New creates a suggester. extractor may be nil.
func New(extractor TextExtractor) *Suggester {
	return &Suggester{extractor: extractor}
}

// SuggestText proposes primary text for the cropped region. OCR failures
// are logged and reported as an empty suggestion.
func (s *Suggester) SuggestText(img image.Image) string {
	if s == nil || s.extractor == nil || img == nil {
		return ""
	}
	text, err := s.extractor.ExtractText(img)
	if err != nil {
		logger.ForComponent("suggest").WithError(err).Debug("Text extraction failed")
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// NearestCategory finds the schema category closest to the typed input by
// edit distance, case-insensitively. Returns the matched category and its
// distance; an empty category list yields ("", -1).
func NearestCategory(input string, categories []string) (string, int) {
	if len(categories) == 0 {
		return "", -1
	}
	needle := strings.ToLower(strings.TrimSpace(input))

	best := categories[0]
	bestDist := levenshtein.Distance(needle, strings.ToLower(categories[0]))
	for _, c := range categories[1:] {
		if d := levenshtein.Distance(needle, strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// TranscriptScore returns the word error rate of a suggested transcript
// against the user-confirmed text: 0 is a perfect suggestion.
func TranscriptScore(confirmed, suggested string) float64 {
	ref := strings.Fields(confirmed)
	hyp := strings.Fields(suggested)
	if len(ref) == 0 {
		if len(hyp) == 0 {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(ref, hyp)
	return rate
}
