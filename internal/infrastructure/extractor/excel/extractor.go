// Package excel extracts normalized content from XLSX workbooks.
package excel

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) MediaTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
}

// Extract reads every sheet. Contiguous runs of non-empty rows become
// Tables, the first row of each sheet contributes a header candidate, and
// RawText carries all cell text in reading order. Merged-cell counts are
// recorded for the enhancer.
func (e *Extractor) Extract(_ context.Context, data []byte) (*domain.ExtractedContent, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract excel", fmt.Errorf("zero-byte payload"))
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract excel", fmt.Errorf("open workbook: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract excel", fmt.Errorf("workbook has no sheets"))
	}

	var (
		text    strings.Builder
		tables  []domain.Table
		headers []string
	)
	seenHeader := map[string]bool{}
	mergedCells := 0

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtractionFailed, "extract excel",
				fmt.Errorf("read sheet %q: %w", sheet, err))
		}

		if merged, err := f.GetMergeCells(sheet); err == nil {
			mergedCells += len(merged)
		}

		var run [][]string
		flush := func() {
			if len(run) > 0 {
				tables = append(tables, domain.NewTable(run))
				run = nil
			}
		}

		for i, row := range rows {
			trimmed := trimRow(row)
			if len(trimmed) == 0 {
				flush()
				continue
			}

			if i == 0 {
				header := strings.Join(trimmed, " ")
				if !seenHeader[header] {
					seenHeader[header] = true
					headers = append(headers, header)
				}
			}

			run = append(run, trimmed)
			for _, cell := range trimmed {
				if cell == "" {
					continue
				}
				if text.Len() > 0 {
					text.WriteByte(' ')
				}
				text.WriteString(cell)
			}
		}
		flush()
	}

	if text.Len() == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract excel", fmt.Errorf("workbook has no cell text"))
	}

	return &domain.ExtractedContent{
		RawText: text.String(),
		Tables:  tables,
		Headers: headers,
		Format:  domain.FormatExcel,
		Metadata: map[string]string{
			"sheet_names":  strings.Join(sheets, ","),
			"sheet_count":  strconv.Itoa(len(sheets)),
			"merged_cells": strconv.Itoa(mergedCells),
		},
	}, nil
}

// trimRow trims cell whitespace and drops fully empty rows.
func trimRow(row []string) []string {
	out := make([]string, len(row))
	empty := true
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
		if out[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return out
}
