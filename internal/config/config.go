// Package config loads the evaluation configuration from YAML: the jury,
// the candidate model, dimension weight overrides, and the infrastructure
// endpoints the worker connects to.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/llm"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Defaults applied when the file omits a setting.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultResultsPath      = "tribunal.db"
)

// RaterConfig declares one jury member or the candidate model.
type RaterConfig struct {
	ID          string  `yaml:"id" validate:"required"`
	Provider    string  `yaml:"provider" validate:"required"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"min=0"`
}

// Spec converts the config entry to the domain rater spec.
func (r RaterConfig) Spec() domain.RaterSpec {
	return domain.RaterSpec{
		ID:          r.ID,
		Provider:    r.Provider,
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
}

// TemporalConfig holds the Temporal connection settings.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
}

// Config is the full evaluation configuration.
type Config struct {
	// Raters is the jury. Every member scores every dimension.
	Raters []RaterConfig `yaml:"raters" validate:"required,min=1,dive"`

	// Candidate produces responses for instances that lack one. Optional
	// when every dataset instance carries its own response.
	Candidate *RaterConfig `yaml:"candidate,omitempty"`

	// CriticalThreshold overrides the escalation threshold; zero keeps the
	// default.
	CriticalThreshold float64 `yaml:"critical_threshold" validate:"min=0,max=1"`

	// WeightOverrides replaces default dimension weights by key. The
	// resulting weights must still sum to 1.0.
	WeightOverrides map[string]float64 `yaml:"weight_overrides,omitempty"`

	// TimeoutSecs bounds each activity attempt.
	TimeoutSecs int64 `yaml:"timeout_secs" validate:"min=0"`

	// ResultsPath is the SQLite database file for evaluation records.
	ResultsPath string `yaml:"results_path"`

	Temporal TemporalConfig `yaml:"temporal"`
	LLM      llm.Config     `yaml:"llm"`
}

// Load reads, defaults, and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = DefaultTemporalHostPort
	}
	if c.ResultsPath == "" {
		c.ResultsPath = DefaultResultsPath
	}
	if c.CriticalThreshold == 0 {
		c.CriticalThreshold = domain.DefaultCriticalThreshold
	}
}

// Validate checks structural constraints and builds the dimension set once
// to surface weight-override mistakes at load time.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := c.DimensionSet(); err != nil {
		return err
	}
	return nil
}

// DimensionSet builds the active rubric: the default seven dimensions with
// any weight overrides applied. Overridden weights must still sum to 1.0.
func (c *Config) DimensionSet() (*domain.DimensionSet, error) {
	dims := domain.DefaultDimensionSet().Dimensions()

	if len(c.WeightOverrides) > 0 {
		known := make(map[string]bool, len(dims))
		for i := range dims {
			known[dims[i].Key] = true
			if w, ok := c.WeightOverrides[dims[i].Key]; ok {
				dims[i].Weight = w
			}
		}
		for key := range c.WeightOverrides {
			if !known[key] {
				return nil, fmt.Errorf("weight override for unknown dimension %q", key)
			}
		}
	}

	set, err := domain.NewDimensionSet(dims)
	if err != nil {
		return nil, fmt.Errorf("weight overrides: %w", err)
	}
	return set, nil
}

// RaterSpecs converts the configured jury to domain specs.
func (c *Config) RaterSpecs() []domain.RaterSpec {
	specs := make([]domain.RaterSpec, len(c.Raters))
	for i, r := range c.Raters {
		specs[i] = r.Spec()
	}
	return specs
}
