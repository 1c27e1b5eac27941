package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// Pipeline is the extraction → classification → enhancement sequence every
// document goes through, synchronous or queued. Stages are inherently
// sequential per document; each consumes the prior stage's output.
type Pipeline struct {
	resolver   ports.ExtractorResolver
	classifier ports.ContentClassifier
	enhancer   ports.ResultEnhancer
	observer   ports.PipelineObserver
}

func NewPipeline(
	resolver ports.ExtractorResolver,
	classifier ports.ContentClassifier,
	enhancer ports.ResultEnhancer,
	observer ports.PipelineObserver,
) *Pipeline {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &Pipeline{
		resolver:   resolver,
		classifier: classifier,
		enhancer:   enhancer,
		observer:   observer,
	}
}

func (p *Pipeline) Run(ctx context.Context, data []byte, industry string) (*domain.Classification, error) {
	content, err := p.extract(ctx, data)
	if err != nil {
		return nil, err
	}

	cls, err := p.classify(ctx, content, industry)
	if err != nil {
		return nil, err
	}

	cls = p.enhance(content, cls)
	p.observer.ObserveConfidence(cls.Industry, cls.Confidence)
	return &cls, nil
}

func (p *Pipeline) extract(ctx context.Context, data []byte) (*domain.ExtractedContent, error) {
	start := time.Now()
	defer func() { p.observer.ObserveStage("extract", time.Since(start)) }()

	extractor, err := p.resolver.Resolve(data)
	if err != nil {
		return nil, err
	}
	content, err := extractor.Extract(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return content, nil
}

func (p *Pipeline) classify(ctx context.Context, content *domain.ExtractedContent, industry string) (domain.Classification, error) {
	start := time.Now()
	defer func() { p.observer.ObserveStage("classify", time.Since(start)) }()

	cls, err := p.classifier.Classify(ctx, content, industry)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify content: %w", err)
	}
	return cls, nil
}

func (p *Pipeline) enhance(content *domain.ExtractedContent, cls domain.Classification) domain.Classification {
	start := time.Now()
	defer func() { p.observer.ObserveStage("enhance", time.Since(start)) }()
	return p.enhancer.Enhance(content, cls)
}

// ClassifyService runs the pipeline synchronously for callers that want the
// result in the response: pure function of the payload and the registries.
type ClassifyService struct {
	pipeline *Pipeline
}

func NewClassifyService(pipeline *Pipeline) *ClassifyService {
	return &ClassifyService{pipeline: pipeline}
}

func (s *ClassifyService) ClassifySync(ctx context.Context, filename string, body io.Reader, industry string) (*domain.Classification, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read payload", err)
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read payload",
			fmt.Errorf("empty payload for %q", filename))
	}
	return s.pipeline.Run(ctx, data, industry)
}
