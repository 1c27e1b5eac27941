package classify

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type entry struct {
	strategy domain.IndustryStrategy
	// matchers holds one compiled word-boundary pattern per keyword,
	// keyed by document type, built once at registration.
	matchers map[string][]*regexp.Regexp
}

// Registry holds industry strategies in registration order. Registration
// happens during startup; reads are safe for concurrent use. Re-registering
// an industry replaces the strategy in place, so its original position, and
// therefore its tie-break priority, is retained. That is the documented
// extension mechanism, not an error.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) Register(strategy domain.IndustryStrategy) error {
	industry := strings.TrimSpace(strategy.Industry)
	if industry == "" {
		return domain.WrapError(domain.ErrInvalidInput, "register strategy", fmt.Errorf("empty industry name"))
	}
	if len(strategy.DocumentTypes) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "register strategy",
			fmt.Errorf("strategy %q declares no document types", industry))
	}

	matchers := make(map[string][]*regexp.Regexp, len(strategy.DocumentTypes))
	for _, docType := range strategy.DocumentTypes {
		for _, keyword := range strategy.Keywords[docType] {
			re, err := compileKeyword(keyword)
			if err != nil {
				return domain.WrapError(domain.ErrInvalidInput, "register strategy",
					fmt.Errorf("strategy %q keyword %q: %w", industry, keyword, err))
			}
			matchers[docType] = append(matchers[docType], re)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[industry]; !exists {
		r.order = append(r.order, industry)
	}
	r.entries[industry] = entry{strategy: strategy, matchers: matchers}
	return nil
}

// StrategiesFor returns the single strategy for a named industry, or every
// registered strategy in registration order when the industry is empty.
func (r *Registry) StrategiesFor(industry string) ([]domain.IndustryStrategy, error) {
	industry = strings.TrimSpace(industry)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if industry == "" {
		out := make([]domain.IndustryStrategy, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.entries[name].strategy)
		}
		return out, nil
	}

	e, ok := r.entries[industry]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnknownIndustry, "lookup strategies", fmt.Errorf("%q", industry))
	}
	return []domain.IndustryStrategy{e.strategy}, nil
}

func (r *Registry) All() []domain.IndustryStrategy {
	all, _ := r.StrategiesFor("")
	return all
}

func (r *Registry) candidatesFor(industry string) ([]entry, error) {
	industry = strings.TrimSpace(industry)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if industry == "" {
		out := make([]entry, 0, len(r.order))
		for _, name := range r.order {
			out = append(out, r.entries[name])
		}
		return out, nil
	}

	e, ok := r.entries[industry]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnknownIndustry, "lookup strategies", fmt.Errorf("%q", industry))
	}
	return []entry{e}, nil
}

// compileKeyword builds a case-insensitive, word-boundary pattern. Multi-word
// keywords match as phrases with flexible whitespace between words; no
// stemming is applied.
func compileKeyword(keyword string) (*regexp.Regexp, error) {
	words := strings.Fields(strings.TrimSpace(keyword))
	if len(words) == 0 {
		return nil, fmt.Errorf("empty keyword")
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.Compile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`)
}
