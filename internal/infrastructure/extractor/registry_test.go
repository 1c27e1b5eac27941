package extractor

import (
	"context"
	"testing"

	"github.com/doctriage/doctriage/internal/core/domain"
	"github.com/doctriage/doctriage/internal/core/ports"
)

type stubExtractor struct {
	mediaTypes []string
}

func (s *stubExtractor) MediaTypes() []string { return s.mediaTypes }

func (s *stubExtractor) Extract(context.Context, []byte) (*domain.ExtractedContent, error) {
	return &domain.ExtractedContent{}, nil
}

func TestResolveByMagicBytes(t *testing.T) {
	pdfExtractor := &stubExtractor{mediaTypes: []string{"application/pdf"}}
	pngExtractor := &stubExtractor{mediaTypes: []string{"image/png"}}

	r := NewRegistry()
	for _, e := range []ports.Extractor{pdfExtractor, pngExtractor} {
		if err := r.Register(e); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	cases := []struct {
		name    string
		payload []byte
		want    ports.Extractor
	}{
		{"pdf magic", []byte("%PDF-1.7\n%binary"), pdfExtractor},
		{"png magic", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}, pngExtractor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.payload)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tc.want {
				t.Fatalf("resolved wrong extractor")
			}
		})
	}
}

func TestResolveIgnoresFilenameHints(t *testing.T) {
	pdfExtractor := &stubExtractor{mediaTypes: []string{"application/pdf"}}
	r := NewRegistry()
	if err := r.Register(pdfExtractor); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Plain text, whatever its name claims, resolves by content only.
	_, err := r.Resolve([]byte("just some text pretending to be report.pdf"))
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want unsupported format", err)
	}
}

func TestResolveUnsupportedFormat(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubExtractor{mediaTypes: []string{"application/pdf"}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := r.Resolve([]byte{0x1F, 0x8B, 0x08, 0x00, 0x00})
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want unsupported format", err)
	}
}

func TestResolveEmptyPayload(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Resolve(nil); !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("error = %v, want extraction failed", err)
	}
}

func TestRegisterConflict(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubExtractor{mediaTypes: []string{"application/pdf"}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := r.Register(&stubExtractor{mediaTypes: []string{"image/png", "application/pdf"}})
	if !domain.IsKind(err, domain.ErrExtractorConflict) {
		t.Fatalf("error = %v, want extractor conflict", err)
	}
}
