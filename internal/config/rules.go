package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperr "github.com/docshield/redactor/internal/errors"
	"github.com/docshield/redactor/internal/redact"
)

// ruleSpec is one entry in the rules file. Strategy selects which config the
// entry becomes; the other fields apply per strategy.
type ruleSpec struct {
	Strategy            string   `yaml:"strategy"`
	Name                string   `yaml:"name"`
	Terms               []string `yaml:"terms"`
	Model               string   `yaml:"model"`
	SystemPrompt        string   `yaml:"systemPrompt"`
	Constraints         []string `yaml:"constraints"`
	ConfidenceThreshold float64  `yaml:"confidenceThreshold"`
}

// Rules holds the named rule sets loaded from the rules file. The file maps
// set names to rule lists:
//
//	default:
//	  - strategy: TextRedaction
//	    name: fixed-terms
//	    terms: ["jane doe"]
//	  - strategy: LLMTextRedaction
//	    name: pii
//	    model: gpt-4.1-nano
//	    systemPrompt: You redact personal information.
//	    terms: ["names", "addresses"]
type Rules struct {
	sets map[string][]redact.Config
}

// LoadRules parses the rules file. Every entry is converted up front so a
// typo fails at startup, not mid-job.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfigNotFound.Code, apperr.ErrConfigNotFound.Message)
	}
	return ParseRules(data)
}

// ParseRules builds rule sets from raw YAML.
func ParseRules(data []byte) (*Rules, error) {
	var raw map[string][]ruleSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfigInvalid.Code, apperr.ErrConfigInvalid.Message)
	}

	sets := make(map[string][]redact.Config, len(raw))
	for name, specs := range raw {
		configs := make([]redact.Config, 0, len(specs))
		for i, spec := range specs {
			cfg, err := spec.toConfig()
			if err != nil {
				return nil, apperr.Wrap(
					fmt.Errorf("rule set %q entry %d: %w", name, i, err),
					apperr.ErrConfigInvalid.Code, apperr.ErrConfigInvalid.Message,
				)
			}
			configs = append(configs, cfg)
		}
		sets[name] = configs
	}
	return &Rules{sets: sets}, nil
}

// Load returns the named rule set.
func (r *Rules) Load(name string) ([]redact.Config, error) {
	configs, ok := r.sets[name]
	if !ok {
		return nil, apperr.Wrap(
			fmt.Errorf("rule set %q", name),
			apperr.ErrConfigNotFound.Code, apperr.ErrConfigNotFound.Message,
		)
	}
	return configs, nil
}

// Names lists the available rule sets.
func (r *Rules) Names() []string {
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	return names
}

func (s ruleSpec) toConfig() (redact.Config, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	switch s.Strategy {
	case redact.StrategyText:
		if len(s.Terms) == 0 {
			return nil, fmt.Errorf("rule %q needs at least one term", s.Name)
		}
		return redact.TextConfig{RuleName: s.Name, Terms: s.Terms}, nil
	case redact.StrategyLLMText:
		if s.Model == "" || s.SystemPrompt == "" {
			return nil, fmt.Errorf("rule %q needs a model and a system prompt", s.Name)
		}
		return redact.LLMTextConfig{
			RuleName:     s.Name,
			Model:        s.Model,
			SystemPrompt: s.SystemPrompt,
			Terms:        s.Terms,
			Constraints:  s.Constraints,
		}, nil
	case redact.StrategyImage:
		return redact.ImageConfig{
			RuleName:            s.Name,
			ConfidenceThreshold: s.ConfidenceThreshold,
		}, nil
	case redact.StrategyImageLLMText:
		if s.Model == "" || s.SystemPrompt == "" {
			return nil, fmt.Errorf("rule %q needs a model and a system prompt", s.Name)
		}
		return redact.ImageLLMTextConfig{
			RuleName:     s.Name,
			Model:        s.Model,
			SystemPrompt: s.SystemPrompt,
			Terms:        s.Terms,
			Constraints:  s.Constraints,
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s.Strategy)
	}
}
