package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type EngineConfig struct {
	// SaturationK is the k in confidence = raw / (raw + k). Three weighted
	// keyword hits land at 0.5 with the default of 3.
	SaturationK float64
	// MinConfidence is the floor below which the result becomes the
	// "unknown" document type. It is still a successful classification.
	MinConfidence float64
}

func (c EngineConfig) normalize() EngineConfig {
	if c.SaturationK <= 0 {
		c.SaturationK = 3.0
	}
	if c.MinConfidence <= 0 || c.MinConfidence >= 1 {
		c.MinConfidence = 0.1
	}
	return c
}

// Engine scores extracted content against registered industry strategies.
// Classify is a pure function of the content and the registry snapshot, so
// identical input on an unchanged registry yields an identical result.
type Engine struct {
	registry *Registry
	cfg      EngineConfig
	logger   *slog.Logger
}

func NewEngine(registry *Registry, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, cfg: cfg.normalize(), logger: logger}
}

type candidate struct {
	industry     string
	documentType string
	raw          float64
	confidence   float64
}

func (e *Engine) Classify(ctx context.Context, content *domain.ExtractedContent, industry string) (cls domain.Classification, err error) {
	if content == nil {
		return domain.Classification{}, domain.WrapError(domain.ErrInvalidInput, "classify", fmt.Errorf("nil content"))
	}
	if err := ctx.Err(); err != nil {
		return domain.Classification{}, err
	}

	// Scoring is plain arithmetic over immutable state; a panic here is a
	// programming error that must surface as a structured failure, not a
	// process crash.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("classifier_panic", "panic", fmt.Sprint(r))
			cls = domain.Classification{}
			err = domain.WrapError(domain.ErrClassifier, "classify", fmt.Errorf("panic: %v", r))
		}
	}()

	entries, err := e.registry.candidatesFor(industry)
	if err != nil {
		return domain.Classification{}, err
	}
	if len(entries) == 0 {
		return domain.Classification{}, domain.WrapError(domain.ErrClassifier, "classify",
			fmt.Errorf("no strategies registered"))
	}

	// Matched counts are kept per industry so that strategies declaring the
	// same document type name never pool their hits; the winner's counts are
	// the only ones reported.
	matchedByIndustry := map[string]map[string]int{}
	var best *candidate

	for _, en := range entries {
		for _, docType := range en.strategy.DocumentTypes {
			occurrences := 0
			for _, re := range en.matchers[docType] {
				occurrences += len(re.FindAllStringIndex(content.RawText, -1))
			}
			if occurrences > 0 {
				m := matchedByIndustry[en.strategy.Industry]
				if m == nil {
					m = map[string]int{}
					matchedByIndustry[en.strategy.Industry] = m
				}
				m[docType] = occurrences
			}

			raw := en.strategy.Weight(docType) * float64(occurrences)
			c := candidate{
				industry:     en.strategy.Industry,
				documentType: docType,
				raw:          raw,
				confidence:   raw / (raw + e.cfg.SaturationK),
			}
			// Strict comparison keeps the earlier-registered strategy and
			// the earlier-declared document type on ties.
			if best == nil || c.confidence > best.confidence {
				b := c
				best = &b
			}
		}
	}

	documentType := best.documentType
	if best.confidence < e.cfg.MinConfidence {
		documentType = domain.DocumentTypeUnknown
	}
	matched := matchedByIndustry[best.industry]
	if len(matched) == 0 {
		matched = nil
	}

	return domain.Classification{
		DocumentType:    documentType,
		Industry:        best.industry,
		Confidence:      best.confidence,
		MatchedKeywords: matched,
		Metadata: map[string]any{
			"classification_method": "keyword_match",
			"scored_type":           best.documentType,
		},
	}, nil
}
