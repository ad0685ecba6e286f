// Package config loads gate configuration into immutable, validated snapshots.
//
// A Snapshot is the only way to hand weights, thresholds and the risk-indicator
// registry to a pipeline. It has no setters; a new configuration means a new
// Snapshot, swapped in whole through a Holder.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethosgate/ethosgate/internal/gate"
	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/ethosgate/ethosgate/internal/projector"
	"github.com/ethosgate/ethosgate/internal/scorer"
	"gopkg.in/yaml.v3"
)

// Snapshot is a validated, read-only configuration
type Snapshot struct {
	name          string
	source        string
	raw           models.GateConfig
	scorer        *scorer.Scorer
	thresholds    gate.Thresholds
	registry      *projector.Registry
	substitutions []models.SubstitutionConfig
	loadedAt      time.Time
	validUntil    time.Time
}

// Load reads and validates a YAML config file
func Load(path string) (*Snapshot, error) {
	return loadAt(path, time.Now().UTC())
}

func loadAt(path string, loadedAt time.Time) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	return Build(cfg, path, loadedAt)
}

// Parse validates YAML config bytes
func Parse(data []byte, source string) (*Snapshot, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	return Build(cfg, source, time.Now().UTC())
}

func decode(data []byte) (models.GateConfig, error) {
	var cfg models.GateConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return models.GateConfig{}, &models.ConfigurationError{Reason: fmt.Sprintf("failed to parse config YAML: %v", err)}
	}
	return cfg, nil
}

// Build validates cfg. loadedAt starts the validity window.
func Build(cfg models.GateConfig, source string, loadedAt time.Time) (*Snapshot, error) {
	weights, err := scorer.NewWeights(cfg.Weights.Knowledge, cfg.Weights.Karma, cfg.Weights.Kindness)
	if err != nil {
		return nil, err
	}

	bounds := scorer.DefaultBounds(cfg.CatastrophicSeverity)
	if cfg.KarmaExponent != nil {
		bounds.Exponent = *cfg.KarmaExponent
	}
	if cfg.MaxBenefit != nil {
		bounds.MaxBenefit = *cfg.MaxBenefit
	}
	if cfg.BenefitKey != "" {
		bounds.BenefitKey = cfg.BenefitKey
	}
	bounds.DefaultBenefit = cfg.DefaultBenefit

	sc, err := scorer.NewScorer(weights, bounds)
	if err != nil {
		return nil, err
	}

	thresholds, err := gate.NewThresholds(cfg.Threshold, cfg.ConfiguredLow)
	if err != nil {
		return nil, err
	}

	registry, err := projector.NewRegistry(cfg.Indicators)
	if err != nil {
		return nil, err
	}
	for i, ind := range cfg.Indicators {
		if err := sc.CheckSeverity(fmt.Sprintf("indicators[%d].severity", i), ind.Severity); err != nil {
			return nil, err
		}
	}

	for i, s := range cfg.Substitutions {
		if strings.TrimSpace(s.Match) == "" || strings.TrimSpace(s.Replace) == "" {
			return nil, models.Configf(fmt.Sprintf("substitutions[%d]", i), "match and replace must both be set")
		}
	}

	var validUntil time.Time
	if cfg.ValidFor != "" {
		d, err := time.ParseDuration(cfg.ValidFor)
		if err != nil || d <= 0 {
			return nil, models.Configf("valid_for", "must be a positive duration, got %q", cfg.ValidFor)
		}
		validUntil = loadedAt.Add(d)
	}

	name := cfg.Name
	if name == "" {
		name = "unnamed"
	}

	return &Snapshot{
		name:          name,
		source:        source,
		raw:           cloneConfig(cfg),
		scorer:        sc,
		thresholds:    thresholds,
		registry:      registry,
		substitutions: append([]models.SubstitutionConfig{}, cfg.Substitutions...),
		loadedAt:      loadedAt,
		validUntil:    validUntil,
	}, nil
}

func (s *Snapshot) Name() string                   { return s.name }
func (s *Snapshot) Source() string                 { return s.source }
func (s *Snapshot) Scorer() *scorer.Scorer         { return s.scorer }
func (s *Snapshot) Thresholds() gate.Thresholds    { return s.thresholds }
func (s *Snapshot) Registry() *projector.Registry  { return s.registry }
func (s *Snapshot) LoadedAt() time.Time            { return s.loadedAt }
func (s *Snapshot) ValidUntil() time.Time          { return s.validUntil }

// Substitutions copy
func (s *Snapshot) Substitutions() []models.SubstitutionConfig {
	return append([]models.SubstitutionConfig{}, s.substitutions...)
}

// Config returns a copy of the source configuration, for explain output
func (s *Snapshot) Config() models.GateConfig {
	return cloneConfig(s.raw)
}

// Expired reports whether now is past the validity window. Snapshots without
// valid_for never expire.
func (s *Snapshot) Expired(now time.Time) bool {
	if s.validUntil.IsZero() {
		return false
	}
	return now.After(s.validUntil)
}

func cloneConfig(cfg models.GateConfig) models.GateConfig {
	out := cfg
	out.KarmaExponent = clonePtr(cfg.KarmaExponent)
	out.MaxBenefit = clonePtr(cfg.MaxBenefit)
	out.Indicators = make([]models.IndicatorConfig, len(cfg.Indicators))
	for i, ind := range cfg.Indicators {
		ind.Keywords = append([]string(nil), ind.Keywords...)
		ind.Requires = append([]string(nil), ind.Requires...)
		out.Indicators[i] = ind
	}
	out.Substitutions = append([]models.SubstitutionConfig(nil), cfg.Substitutions...)
	return out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
