// Package enhance attaches the deterministic post-classification pass:
// table summaries, format feature flags, and lightweight pattern metadata.
// The pass is purely additive and never changes the classification
// decision or its confidence.
package enhance

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/doctriage/doctriage/internal/core/domain"
)

var (
	// Dates like 01/31/2026, 2026-01-31, or "January 31, 2026".
	dateRe = regexp.MustCompile(`(?i)\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})\b`)
	// Currency amounts like $1,234.56 or 1234.56 USD/EUR/GBP.
	amountRe = regexp.MustCompile(`(?i)(?:[$€£]\s?\d[\d,]*(?:\.\d{2})?|\b\d[\d,]*\.\d{2}\s?(?:usd|eur|gbp)\b)`)
)

type Enhancer struct{}

func New() *Enhancer {
	return &Enhancer{}
}

func (e *Enhancer) Enhance(content *domain.ExtractedContent, cls domain.Classification) domain.Classification {
	if content == nil {
		return cls
	}

	summaries := make([]domain.TableSummary, 0, len(content.Tables))
	for i, table := range content.Tables {
		summaries = append(summaries, domain.TableSummary{
			Index:        i,
			Rows:         table.RowCount,
			Columns:      table.ColumnCount,
			HasHeaderRow: hasHeaderRow(table),
		})
	}
	if len(summaries) == 0 {
		summaries = nil
	}

	features := map[string]any{
		"content_length": len(content.RawText),
		"word_count":     len(strings.Fields(content.RawText)),
		"has_tables":     len(content.Tables) > 0,
		"has_headers":    len(content.Headers) > 0,
		"has_footers":    len(content.Footers) > 0,
	}
	switch content.Format {
	case domain.FormatPDF:
		features["page_count"] = content.PageCount
	case domain.FormatExcel:
		if v := content.Metadata["sheet_count"]; v != "" {
			features["sheet_count"] = atoiOrZero(v)
		}
		if v := content.Metadata["merged_cells"]; v != "" {
			features["merged_cells"] = atoiOrZero(v)
		}
	case domain.FormatImage:
		if v := content.Metadata["ocr_source"]; v != "" {
			features["ocr_source"] = v
		}
	}

	cls.Enhancement = domain.Enhancement{
		TablesDetected: len(content.Tables),
		TableSummaries: summaries,
		FormatFeatures: features,
	}

	if cls.Metadata == nil {
		cls.Metadata = map[string]any{}
	}
	if dates := dateRe.FindAllString(content.RawText, -1); len(dates) > 0 {
		cls.Metadata["detected_dates"] = len(dates)
	}
	if amounts := amountRe.FindAllString(content.RawText, -1); len(amounts) > 0 {
		cls.Metadata["detected_amounts"] = len(amounts)
	}

	return cls
}

// hasHeaderRow flags tables whose first row is mostly non-numeric text while
// the following rows are not.
func hasHeaderRow(table domain.Table) bool {
	if table.RowCount < 2 {
		return false
	}
	if numericRatio(table.Rows[0]) > 0.5 {
		return false
	}

	var bodyNumeric, bodyCells float64
	for _, row := range table.Rows[1:] {
		for _, cell := range row {
			if cell == "" {
				continue
			}
			bodyCells++
			if looksNumeric(cell) {
				bodyNumeric++
			}
		}
	}
	return bodyCells > 0 && bodyNumeric/bodyCells > 0.3
}

func numericRatio(row []string) float64 {
	var numeric, filled float64
	for _, cell := range row {
		if cell == "" {
			continue
		}
		filled++
		if looksNumeric(cell) {
			numeric++
		}
	}
	if filled == 0 {
		return 0
	}
	return numeric / filled
}

func looksNumeric(cell string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ', '%':
			return -1
		}
		return r
	}, cell)
	if cleaned == "" {
		return false
	}
	_, err := strconv.ParseFloat(cleaned, 64)
	return err == nil
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
