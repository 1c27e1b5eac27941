package extractor

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

// Registry maps sniffed media types to extractors. It is populated once
// during startup and read-only afterwards, so Resolve needs no locking.
type Registry struct {
	byMediaType map[string]ports.Extractor
}

func NewRegistry() *Registry {
	return &Registry{byMediaType: make(map[string]ports.Extractor)}
}

// Register claims every media type the extractor declares. Overlapping
// claims are a wiring bug, not a runtime condition, so they fail loudly.
func (r *Registry) Register(e ports.Extractor) error {
	for _, mt := range e.MediaTypes() {
		if _, taken := r.byMediaType[mt]; taken {
			return domain.WrapError(domain.ErrExtractorConflict, "register extractor",
				fmt.Errorf("media type %q already claimed", mt))
		}
		r.byMediaType[mt] = e
	}
	return nil
}

// Resolve sniffs the payload's magic bytes and returns the matching
// extractor. The detected type's parent chain is walked so a specific
// detection (e.g. "text/html; charset=utf-8") can still match a broader
// registration. Filenames are never consulted.
func (r *Registry) Resolve(data []byte) (ports.Extractor, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrExtractionFailed, "resolve extractor",
			fmt.Errorf("zero-byte payload"))
	}

	detected := mimetype.Detect(data)
	for mt := detected; mt != nil; mt = mt.Parent() {
		if e, ok := r.byMediaType[baseMediaType(mt.String())]; ok {
			return e, nil
		}
	}
	return nil, domain.WrapError(domain.ErrUnsupportedFormat, "resolve extractor",
		fmt.Errorf("no extractor for %s", detected.String()))
}

func baseMediaType(mt string) string {
	for i := 0; i < len(mt); i++ {
		if mt[i] == ';' {
			return mt[:i]
		}
	}
	return mt
}
