// Package word extracts normalized content from OOXML Word documents by
// reading the document parts straight out of the ZIP container. Legacy
// binary .doc is not a ZIP and never resolves to this extractor.
package word

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) MediaTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}

func (e *Extractor) Extract(_ context.Context, data []byte) (*domain.ExtractedContent, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", fmt.Errorf("zero-byte payload"))
	}

	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", fmt.Errorf("open container: %w", err))
	}

	var docFile *zip.File
	var headerFiles, footerFiles []*zip.File
	for _, f := range archive.File {
		switch {
		case f.Name == "word/document.xml":
			docFile = f
		case strings.HasPrefix(f.Name, "word/header") && strings.HasSuffix(f.Name, ".xml"):
			headerFiles = append(headerFiles, f)
		case strings.HasPrefix(f.Name, "word/footer") && strings.HasSuffix(f.Name, ".xml"):
			footerFiles = append(footerFiles, f)
		}
	}
	if docFile == nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word",
			fmt.Errorf("word/document.xml not found in archive"))
	}

	paragraphs, tables, err := parseDocument(docFile)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", err)
	}

	var text strings.Builder
	for _, p := range paragraphs {
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(p)
	}
	// Table cells participate in keyword scoring too.
	for _, tbl := range tables {
		for _, row := range tbl.Rows {
			for _, cell := range row {
				if cell == "" {
					continue
				}
				if text.Len() > 0 {
					text.WriteByte('\n')
				}
				text.WriteString(cell)
			}
		}
	}

	if text.Len() == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", fmt.Errorf("document has no text"))
	}

	headers, err := parseMarginalia(headerFiles)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", err)
	}
	footers, err := parseMarginalia(footerFiles)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "extract word", err)
	}

	return &domain.ExtractedContent{
		RawText: text.String(),
		Tables:  tables,
		Headers: headers,
		Footers: footers,
		Format:  domain.FormatWord,
	}, nil
}

// parseDocument token-walks word/document.xml collecting paragraph text and
// w:tbl/w:tr/w:tc table structure.
func parseDocument(f *zip.File) ([]string, []domain.Table, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)

	var (
		paragraphs []string
		tables     []domain.Table

		paragraph strings.Builder
		cell      strings.Builder
		rows      [][]string
		row       []string

		inParagraph bool
		tableDepth  int
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
				if tableDepth == 1 {
					rows = nil
				} else if cell.Len() > 0 {
					cell.WriteByte(' ')
				}
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "p":
				if tableDepth == 0 {
					inParagraph = true
					paragraph.Reset()
				}
			}

		case xml.CharData:
			switch {
			// Text inside a nested table folds into the enclosing outer
			// cell; only the outermost table contributes structure.
			case tableDepth >= 1:
				cell.Write(t)
			case inParagraph:
				paragraph.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				if tableDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				} else if tableDepth > 1 {
					cell.WriteByte(' ')
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					rows = append(rows, row)
				}
			case "tbl":
				if tableDepth == 1 && len(rows) > 0 {
					tables = append(tables, domain.NewTable(rows))
				}
				tableDepth--
			case "p":
				if inParagraph {
					inParagraph = false
					if text := strings.TrimSpace(paragraph.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
				}
			}
		}
	}

	return paragraphs, tables, nil
}

// parseMarginalia extracts the text of header/footer parts, one entry per
// part, deduplicated in order of first appearance.
func parseMarginalia(files []*zip.File) ([]string, error) {
	var out []string
	seen := map[string]bool{}

	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}

		decoder := xml.NewDecoder(rc)
		var text strings.Builder
		inText := false
		for {
			tok, err := decoder.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				rc.Close()
				return nil, fmt.Errorf("decode %s: %w", f.Name, err)
			}
			switch t := tok.(type) {
			case xml.StartElement:
				inText = t.Name.Local == "t"
			case xml.CharData:
				if inText {
					text.Write(t)
				}
			case xml.EndElement:
				inText = false
			}
		}
		rc.Close()

		if s := strings.TrimSpace(text.String()); s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}
