package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/doctriage/doctriage/internal/core/domain"
)

func mustRegister(t *testing.T, r *Registry, strategies ...domain.IndustryStrategy) {
	t.Helper()
	for _, s := range strategies {
		if err := r.Register(s); err != nil {
			t.Fatalf("register %q: %v", s.Industry, err)
		}
	}
}

func newTestEngine(t *testing.T, strategies ...domain.IndustryStrategy) *Engine {
	t.Helper()
	r := NewRegistry()
	mustRegister(t, r, strategies...)
	return NewEngine(r, EngineConfig{}, nil)
}

func TestClassifyBankStatement(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	content := &domain.ExtractedContent{
		RawText: "Monthly Statement. Opening balance 1,200.00. Account 44-221. Closing balance 900.00.",
		Format:  domain.FormatPDF,
	}

	cls, err := engine.Classify(context.Background(), content, "financial")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != "bank_statement" {
		t.Fatalf("document type = %q, want bank_statement (matched %v)", cls.DocumentType, cls.MatchedKeywords)
	}
	if cls.Industry != "financial" {
		t.Fatalf("industry = %q, want financial", cls.Industry)
	}
	if cls.Confidence <= 0 || cls.Confidence >= 1 {
		t.Fatalf("confidence = %v, want in (0, 1)", cls.Confidence)
	}
	if cls.MatchedKeywords["bank_statement"] < 3 {
		t.Fatalf("matched = %v, want statement, balance and account hits", cls.MatchedKeywords)
	}
	if cls.Metadata["classification_method"] != "keyword_match" {
		t.Fatalf("metadata = %v", cls.Metadata)
	}
}

func TestClassifyAllIndustriesWhenUnspecified(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	content := &domain.ExtractedContent{
		RawText: "Patient prescription: amoxicillin 500mg dosage, refill twice daily as prescribed by the pharmacy.",
	}

	cls, err := engine.Classify(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Industry != "healthcare" {
		t.Fatalf("industry = %q, want healthcare to win the open scan", cls.Industry)
	}
	if cls.DocumentType != "prescription" {
		t.Fatalf("document type = %q, want prescription", cls.DocumentType)
	}
}

func TestClassifyNoMatchesYieldsUnknown(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	content := &domain.ExtractedContent{RawText: "zzz qqq unrelated gibberish"}

	cls, err := engine.Classify(context.Background(), content, "financial")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != domain.DocumentTypeUnknown {
		t.Fatalf("document type = %q, want unknown", cls.DocumentType)
	}
	if cls.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0 with zero hits", cls.Confidence)
	}
	if cls.MatchedKeywords != nil {
		t.Fatalf("matched = %v, want none", cls.MatchedKeywords)
	}
}

func TestClassifyBelowFloorIsUnknownNotError(t *testing.T) {
	strategy := domain.IndustryStrategy{
		Industry:      "test",
		DocumentTypes: []string{"memo"},
		Keywords:      map[string][]string{"memo": {"memorandum"}},
	}
	r := NewRegistry()
	mustRegister(t, r, strategy)
	engine := NewEngine(r, EngineConfig{MinConfidence: 0.5}, nil)

	// One hit: raw 1.0, confidence 1/(1+3) = 0.25, under the 0.5 floor.
	cls, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "a memorandum"}, "test")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != domain.DocumentTypeUnknown {
		t.Fatalf("document type = %q, want unknown below floor", cls.DocumentType)
	}
	if cls.Confidence != 0.25 {
		t.Fatalf("confidence = %v, want the computed 0.25 preserved", cls.Confidence)
	}
	if cls.Metadata["scored_type"] != "memo" {
		t.Fatalf("metadata = %v, want scored_type memo", cls.Metadata)
	}
}

func TestClassifyTieBreakRegistrationOrder(t *testing.T) {
	first := domain.IndustryStrategy{
		Industry:      "alpha",
		DocumentTypes: []string{"a_doc"},
		Keywords:      map[string][]string{"a_doc": {"shared"}},
	}
	second := domain.IndustryStrategy{
		Industry:      "beta",
		DocumentTypes: []string{"b_doc"},
		Keywords:      map[string][]string{"b_doc": {"shared"}},
	}
	engine := newTestEngine(t, first, second)

	cls, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "shared shared shared shared"}, "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Industry != "alpha" || cls.DocumentType != "a_doc" {
		t.Fatalf("winner = %s/%s, want the first-registered alpha/a_doc", cls.Industry, cls.DocumentType)
	}
}

func TestClassifyTieBreakDeclarationOrder(t *testing.T) {
	strategy := domain.IndustryStrategy{
		Industry:      "test",
		DocumentTypes: []string{"first_type", "second_type"},
		Keywords: map[string][]string{
			"first_type":  {"shared"},
			"second_type": {"shared"},
		},
	}
	engine := newTestEngine(t, strategy)

	cls, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "shared shared"}, "test")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != "first_type" {
		t.Fatalf("document type = %q, want the first-declared type on a tie", cls.DocumentType)
	}
}

func TestClassifyScoringWeights(t *testing.T) {
	strategy := domain.IndustryStrategy{
		Industry:      "test",
		DocumentTypes: []string{"light", "heavy"},
		Keywords: map[string][]string{
			"light": {"token"},
			"heavy": {"token"},
		},
		ScoringWeights: map[string]float64{"heavy": 2.0},
	}
	engine := newTestEngine(t, strategy)

	cls, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "token token"}, "test")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != "heavy" {
		t.Fatalf("document type = %q, want the weighted type", cls.DocumentType)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	content := &domain.ExtractedContent{
		RawText: "Invoice 1042: total due on receipt, payment terms net 30, remit to vendor.",
	}

	first, err := engine.Classify(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := engine.Classify(context.Background(), content, "")
		if err != nil {
			t.Fatalf("Classify run %d: %v", i, err)
		}
		if again.DocumentType != first.DocumentType || again.Industry != first.Industry || again.Confidence != first.Confidence {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestClassifyPhraseKeywordsMatchAcrossWhitespace(t *testing.T) {
	strategy := domain.IndustryStrategy{
		Industry:      "test",
		DocumentTypes: []string{"report"},
		Keywords:      map[string][]string{"report": {"annual report"}},
	}
	engine := newTestEngine(t, strategy)

	content := &domain.ExtractedContent{RawText: "ANNUAL\n   Report for shareholders"}
	cls, err := engine.Classify(context.Background(), content, "test")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.MatchedKeywords["report"] != 1 {
		t.Fatalf("matched = %v, want the phrase to span the line break", cls.MatchedKeywords)
	}
}

func TestClassifyNoSubstringMatches(t *testing.T) {
	strategy := domain.IndustryStrategy{
		Industry:      "test",
		DocumentTypes: []string{"doc"},
		Keywords:      map[string][]string{"doc": {"count"}},
	}
	engine := newTestEngine(t, strategy)

	cls, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "accountant discounted"}, "test")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(cls.MatchedKeywords) != 0 {
		t.Fatalf("matched = %v, want no substring hits", cls.MatchedKeywords)
	}
}

func TestClassifyUnknownIndustry(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)

	_, err := engine.Classify(context.Background(), &domain.ExtractedContent{RawText: "x"}, "retail")
	if !domain.IsKind(err, domain.ErrUnknownIndustry) {
		t.Fatalf("error = %v, want unknown industry", err)
	}
}

func TestClassifyNilContent(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)

	_, err := engine.Classify(context.Background(), nil, "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestClassifyCanceledContext(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Classify(ctx, &domain.ExtractedContent{RawText: "x"}, ""); err == nil {
		t.Fatal("expected context error")
	}
}

func TestClassifyLargeDocument(t *testing.T) {
	engine := newTestEngine(t, BuiltinStrategies()...)
	content := &domain.ExtractedContent{
		RawText: strings.Repeat("invoice total due payment ", 5000),
	}

	cls, err := engine.Classify(context.Background(), content, "financial")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.DocumentType != "invoice" {
		t.Fatalf("document type = %q, want invoice", cls.DocumentType)
	}
	if cls.Confidence >= 1 {
		t.Fatalf("confidence = %v, saturation must stay under 1", cls.Confidence)
	}
}

func TestEngineConfigZeroValueGetsDefaults(t *testing.T) {
	cfg := EngineConfig{}.normalize()
	if cfg.SaturationK != 3.0 {
		t.Fatalf("SaturationK = %v, want the 3.0 default", cfg.SaturationK)
	}
	if cfg.MinConfidence != 0.1 {
		t.Fatalf("MinConfidence = %v, want the 0.1 default", cfg.MinConfidence)
	}
}

func TestClassifyMatchedKeywordsScopedToWinner(t *testing.T) {
	alpha := domain.IndustryStrategy{
		Industry:      "alpha",
		DocumentTypes: []string{"invoice"},
		Keywords:      map[string][]string{"invoice": {"invoice", "total due"}},
	}
	beta := domain.IndustryStrategy{
		Industry:      "beta",
		DocumentTypes: []string{"invoice"},
		Keywords:      map[string][]string{"invoice": {"invoice"}},
	}
	engine := newTestEngine(t, alpha, beta)

	// Both strategies hit "invoice" twice; only alpha also hits "total due".
	content := &domain.ExtractedContent{RawText: "invoice invoice with total due"}
	cls, err := engine.Classify(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if cls.Industry != "alpha" {
		t.Fatalf("industry = %q, want alpha to win the open scan", cls.Industry)
	}
	if cls.MatchedKeywords["invoice"] != 3 {
		t.Fatalf("matched = %v, want the winner's 3 hits, not counts pooled across industries", cls.MatchedKeywords)
	}
}
