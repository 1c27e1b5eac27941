package domain

// IndustryStrategy is the pluggable ruleset for one industry vertical.
// DocumentTypes order doubles as the tie-break order during scoring, so it is
// a slice, not a map. Strategies are registered at startup and shared
// read-only across concurrent classification calls.
type IndustryStrategy struct {
	Industry       string              `json:"industry" yaml:"industry"`
	DocumentTypes  []string            `json:"document_types" yaml:"document_types"`
	Keywords       map[string][]string `json:"keywords" yaml:"keywords"`
	ScoringWeights map[string]float64  `json:"scoring_weights,omitempty" yaml:"scoring_weights,omitempty"`
}

// Weight returns the scoring weight for a document type, defaulting to 1.0
// when no explicit weight is configured.
func (s IndustryStrategy) Weight(documentType string) float64 {
	if w, ok := s.ScoringWeights[documentType]; ok && w > 0 {
		return w
	}
	return 1.0
}
