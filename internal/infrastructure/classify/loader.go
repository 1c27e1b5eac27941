package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/doctriage/doctriage/internal/core/domain"
)

type strategyFile struct {
	Strategies []domain.IndustryStrategy `yaml:"strategies"`
}

// LoadStrategyFile reads additional industry strategies from a YAML file.
// A loaded strategy with a built-in's industry name replaces it through the
// registry's last-write-wins semantics.
func LoadStrategyFile(path string) ([]domain.IndustryStrategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}

	var file strategyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse strategy file", err)
	}
	if len(file.Strategies) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse strategy file",
			fmt.Errorf("no strategies declared in %s", path))
	}
	return file.Strategies, nil
}

// NewRegistryFromConfig builds the startup registry: built-ins first, then
// the optional strategy file on top.
func NewRegistryFromConfig(strategyFile string) (*Registry, error) {
	registry := NewRegistry()
	for _, s := range BuiltinStrategies() {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}

	if strategyFile == "" {
		return registry, nil
	}

	loaded, err := LoadStrategyFile(strategyFile)
	if err != nil {
		return nil, err
	}
	for _, s := range loaded {
		if err := registry.Register(s); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
