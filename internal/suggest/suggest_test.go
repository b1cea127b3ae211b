package suggest

import (
	"errors"
	"image"
	"testing"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(img image.Image) (string, error) {
	return s.text, s.err
}

func TestSuggestTextNormalizesWhitespace(t *testing.T) {
	s := New(stubExtractor{text: "  soft\n  lighting\tstudy "})
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	if got := s.SuggestText(img); got != "soft lighting study" {
		t.Errorf("SuggestText = %q", got)
	}
}

func TestSuggestTextDegradesOnFailure(t *testing.T) {
	s := New(stubExtractor{err: errors.New("tesseract unavailable")})
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	if got := s.SuggestText(img); got != "" {
		t.Errorf("SuggestText = %q, want empty on OCR failure", got)
	}
}

func TestSuggestTextWithNoExtractor(t *testing.T) {
	if got := New(nil).SuggestText(image.NewNRGBA(image.Rect(0, 0, 4, 4))); got != "" {
		t.Errorf("SuggestText = %q, want empty without extractor", got)
	}
}

func TestNearestCategory(t *testing.T) {
	categories := []string{"lighting", "composition", "material", "style"}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "Exact match", input: "style", want: "style"},
		{name: "Case insensitive", input: "LIGHTING", want: "lighting"},
		{name: "Typo snaps to closest", input: "compositon", want: "composition"},
		{name: "Partial input", input: "materal", want: "material"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dist := NearestCategory(tt.input, categories)
			if got != tt.want {
				t.Errorf("NearestCategory(%q) = %q (distance %d), want %q", tt.input, got, dist, tt.want)
			}
		})
	}

	if got, dist := NearestCategory("anything", nil); got != "" || dist != -1 {
		t.Errorf("empty category list gave (%q, %d)", got, dist)
	}
}

func TestTranscriptScore(t *testing.T) {
	if s := TranscriptScore("the quick brown fox", "the quick brown fox"); s != 0 {
		t.Errorf("identical transcripts scored %f, want 0", s)
	}
	if s := TranscriptScore("the quick brown fox", "the quik brown fox"); s != 0.25 {
		t.Errorf("one substitution in four words scored %f, want 0.25", s)
	}
	if s := TranscriptScore("", ""); s != 0 {
		t.Errorf("empty transcripts scored %f, want 0", s)
	}
	if s := TranscriptScore("", "noise"); s != 1 {
		t.Errorf("hallucinated text against empty reference scored %f, want 1", s)
	}
}
