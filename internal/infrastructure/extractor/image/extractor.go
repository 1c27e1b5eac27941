// Package image extracts content from scanned documents by piping the
// payload through OCR.
package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/infrastructure/ocr"
)

type Extractor struct {
	engine ocr.Engine
}

func New(engine ocr.Engine) *Extractor {
	return &Extractor{engine: engine}
}

func (e *Extractor) MediaTypes() []string {
	return []string{"image/png", "image/jpeg", "image/tiff", "image/bmp", "image/webp"}
}

// Extract runs OCR and normalizes the recognized text. A blank scan, where
// OCR succeeds but yields no usable text, is an extraction failure, never
// an empty success that would classify as a low-confidence document.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*domain.ExtractedContent, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract image", fmt.Errorf("zero-byte payload"))
	}

	text, err := e.engine.Recognize(ctx, data)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract image", err)
	}

	text = normalize(text)
	if !hasUsableText(text) {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract image",
			fmt.Errorf("ocr produced no usable text"))
	}

	return &domain.ExtractedContent{
		RawText:   text,
		Format:    domain.FormatImage,
		PageCount: 1,
		Metadata:  map[string]string{"ocr_source": "tesseract"},
	}, nil
}

// normalize collapses OCR line noise: blank lines and runs of whitespace.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// hasUsableText requires at least one multi-character word with a letter in
// it, so pure speckle output does not pass as content.
func hasUsableText(text string) bool {
	for _, word := range strings.Fields(text) {
		if len(word) < 2 {
			continue
		}
		for _, r := range word {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80 {
				return true
			}
		}
	}
	return false
}
