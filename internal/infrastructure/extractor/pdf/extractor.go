// Package pdf extracts normalized content from PDF payloads.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) MediaTypes() []string {
	return []string{"application/pdf"}
}

// Extract walks every page for plain text, collects first/last-line header
// and footer candidates, and copies document Info metadata when present.
// Encrypted or undecodable files fail; a PDF with no text at all is treated
// as a scan that should have gone through OCR, which is also a failure.
func (e *Extractor) Extract(_ context.Context, data []byte) (content *domain.ExtractedContent, err error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract pdf", fmt.Errorf("zero-byte payload"))
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = domain.WrapError(domain.ErrExtractionFailed, "extract pdf", fmt.Errorf("malformed document: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract pdf", err)
	}

	var (
		text    strings.Builder
		headers []string
		footers []string
	)
	seenHeader := map[string]bool{}
	seenFooter := map[string]bool{}

	pageCount := reader.NumPage()
	for pageNr := 1; pageNr <= pageCount; pageNr++ {
		page := reader.Page(pageNr)
		if page.V.IsNull() {
			continue
		}

		pageText, textErr := page.GetPlainText(nil)
		if textErr != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(pageText)

		top, bottom := edgeLines(page)
		if top != "" && !seenHeader[top] {
			seenHeader[top] = true
			headers = append(headers, top)
		}
		if bottom != "" && bottom != top && !seenFooter[bottom] {
			seenFooter[bottom] = true
			footers = append(footers, bottom)
		}
	}

	if text.Len() == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract pdf", fmt.Errorf("no text content in %d pages", pageCount))
	}

	return &domain.ExtractedContent{
		RawText:   text.String(),
		Headers:   headers,
		Footers:   footers,
		Format:    domain.FormatPDF,
		PageCount: pageCount,
		Metadata:  infoMetadata(reader),
	}, nil
}

// edgeLines returns the top-most and bottom-most text lines of a page,
// grouping positioned fragments by their Y coordinate. PDF Y grows upward.
func edgeLines(page pdf.Page) (top, bottom string) {
	texts := page.Content().Text
	if len(texts) == 0 {
		return "", ""
	}

	rows := map[float64][]pdf.Text{}
	for _, t := range texts {
		rows[t.Y] = append(rows[t.Y], t)
	}

	ys := make([]float64, 0, len(rows))
	for y := range rows {
		ys = append(ys, y)
	}
	sort.Float64s(ys)

	return joinRow(rows[ys[len(ys)-1]]), joinRow(rows[ys[0]])
}

func joinRow(fragments []pdf.Text) string {
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].X < fragments[j].X })
	var sb strings.Builder
	for _, f := range fragments {
		sb.WriteString(f.S)
	}
	return strings.TrimSpace(sb.String())
}

func infoMetadata(reader *pdf.Reader) map[string]string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}

	meta := map[string]string{}
	for _, key := range []string{"Title", "Author", "Subject", "Producer"} {
		v := info.Key(key)
		if v.Kind() != pdf.String {
			continue
		}
		if s := strings.TrimSpace(v.Text()); s != "" {
			meta[strings.ToLower(key)] = s
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
