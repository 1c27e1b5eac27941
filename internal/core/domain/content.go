package domain

type DocumentFormat string

const (
	FormatPDF   DocumentFormat = "pdf"
	FormatWord  DocumentFormat = "word"
	FormatExcel DocumentFormat = "excel"
	FormatImage DocumentFormat = "image"
)

// Table is one rectangular block of cells in extraction order.
type Table struct {
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
}

// NewTable derives row/column counts from the given rows.
func NewTable(rows [][]string) Table {
	columns := 0
	for _, row := range rows {
		if len(row) > columns {
			columns = len(row)
		}
	}
	return Table{Rows: rows, RowCount: len(rows), ColumnCount: columns}
}

// ExtractedContent is the normalized output of an extractor. Built once per
// classification call and read-only afterwards.
type ExtractedContent struct {
	RawText   string            `json:"raw_text"`
	Tables    []Table           `json:"tables,omitempty"`
	Headers   []string          `json:"headers,omitempty"`
	Footers   []string          `json:"footers,omitempty"`
	Format    DocumentFormat    `json:"format"`
	PageCount int               `json:"page_count,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
