package suggest

import (
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"go-region-annotator/internal/raster"
)

// OCRExtractor extracts text with tesseract. Requires the tesseract
// runtime; guard construction behind configuration.
type OCRExtractor struct {
	language string
}

// NewOCRExtractor creates an extractor for the given tesseract language.
func NewOCRExtractor(language string) *OCRExtractor {
	if language == "" {
		language = "eng"
	}
	return &OCRExtractor{language: language}
}

// ExtractText runs OCR over img.
func (o *OCRExtractor) ExtractText(img image.Image) (string, error) {
	raw, err := raster.EncodePNG(img)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(o.language); err != nil {
		return "", fmt.Errorf("set ocr language %q: %w", o.language, err)
	}
	if err := client.SetImageFromBytes(raw); err != nil {
		return "", fmt.Errorf("load image for ocr: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}
