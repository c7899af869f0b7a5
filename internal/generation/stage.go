package generation

import (
	"errors"
	"fmt"
	"text/template"

	"github.com/af-corp/appgen-gateway/internal/config"
)

// Stage is one completion call in the pipeline.
type Stage struct {
	Name        string
	System      string
	Directive   string
	MaxTokens   int
	Temperature float64
	Provider    string
	Model       string

	// Template renders the user message of refinement stages. Nil means the
	// default refinement template.
	Template *template.Template
}

// StagesFromConfig validates the configured stage list and fills in the
// pipeline-wide provider and model.
func StagesFromConfig(cfg *config.PipelineConfig) ([]Stage, error) {
	if cfg == nil || len(cfg.Stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}

	stages := make([]Stage, 0, len(cfg.Stages))
	for i, sc := range cfg.Stages {
		s := Stage{
			Name:        sc.Name,
			System:      sc.System,
			Directive:   sc.Directive,
			MaxTokens:   sc.MaxTokens,
			Temperature: sc.Temperature,
			Provider:    sc.Provider,
			Model:       sc.Model,
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("stage-%d", i)
		}
		if s.Provider == "" {
			s.Provider = cfg.Provider
		}
		if s.Model == "" {
			s.Model = cfg.Model
		}
		if s.Provider == "" || s.Model == "" {
			return nil, fmt.Errorf("stage %q: provider and model are required", s.Name)
		}
		if s.MaxTokens <= 0 {
			return nil, fmt.Errorf("stage %q: max_tokens must be positive", s.Name)
		}
		if s.Temperature < 0 || s.Temperature > 2 {
			return nil, fmt.Errorf("stage %q: temperature %.2f out of range", s.Name, s.Temperature)
		}
		if sc.Template != "" {
			tmpl, err := template.New(s.Name).Option("missingkey=error").Parse(sc.Template)
			if err != nil {
				return nil, fmt.Errorf("stage %q: parse template: %w", s.Name, err)
			}
			s.Template = tmpl
		}
		stages = append(stages, s)
	}
	return stages, nil
}
