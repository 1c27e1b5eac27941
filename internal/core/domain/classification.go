package domain

// DocumentTypeUnknown is returned when no document type clears the
// configured confidence floor. It is a valid result, not an error.
const DocumentTypeUnknown = "unknown"

type TableSummary struct {
	Index        int  `json:"index"`
	Rows         int  `json:"rows"`
	Columns      int  `json:"columns"`
	HasHeaderRow bool `json:"has_header_row"`
}

// Enhancement is the additive post-pass attached to a Classification. It
// never carries anything that changes the classification decision itself.
type Enhancement struct {
	TablesDetected int            `json:"tables_detected"`
	TableSummaries []TableSummary `json:"table_summaries,omitempty"`
	FormatFeatures map[string]any `json:"format_features,omitempty"`
}

// Classification is the immutable outcome of one pipeline run.
type Classification struct {
	DocumentType    string         `json:"document_type"`
	Industry        string         `json:"industry"`
	Confidence      float64        `json:"confidence"`
	MatchedKeywords map[string]int `json:"matched_keywords,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Enhancement     Enhancement    `json:"enhancement"`
}
