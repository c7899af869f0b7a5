package config

// PipelineConfig is the ordered stage list for app generation. The number of
// stages and their order come from here, never from request data.
type PipelineConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	Stages   []StageConfig `yaml:"stages"`
}

type StageConfig struct {
	Name        string  `yaml:"name"`
	System      string  `yaml:"system"`
	Directive   string  `yaml:"directive,omitempty"`
	Template    string  `yaml:"template,omitempty"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Provider    string  `yaml:"provider,omitempty"`
	Model       string  `yaml:"model,omitempty"`
}
