package models

// GateConfig from yaml. KarmaExponent and MaxBenefit are nil when the key is
// absent; an explicit zero is kept and validated as such.
type GateConfig struct {
	Name                 string               `yaml:"name" json:"name"`
	Weights              WeightsConfig        `yaml:"weights" json:"weights"`
	KarmaExponent        *float64             `yaml:"karma_exponent,omitempty" json:"karma_exponent,omitempty"`
	Threshold            float64              `yaml:"threshold" json:"threshold"`
	ConfiguredLow        float64              `yaml:"configured_low" json:"configured_low"`
	CatastrophicSeverity float64              `yaml:"catastrophic_severity" json:"catastrophic_severity"`
	MaxBenefit           *float64             `yaml:"max_benefit,omitempty" json:"max_benefit,omitempty"`
	DefaultBenefit       float64              `yaml:"default_benefit,omitempty" json:"default_benefit,omitempty"`
	BenefitKey           string               `yaml:"benefit_key,omitempty" json:"benefit_key,omitempty"`
	ValidFor             string               `yaml:"valid_for,omitempty" json:"valid_for,omitempty"`
	Indicators           []IndicatorConfig    `yaml:"indicators" json:"indicators"`
	Substitutions        []SubstitutionConfig `yaml:"substitutions,omitempty" json:"substitutions,omitempty"`
}

// WeightsConfig knowledge/karma/kindness
type WeightsConfig struct {
	Knowledge float64 `yaml:"knowledge" json:"knowledge"`
	Karma     float64 `yaml:"karma" json:"karma"`
	Kindness  float64 `yaml:"kindness" json:"kindness"`
}

// IndicatorConfig is one risk indicator of the registry
type IndicatorConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Severity    float64  `yaml:"severity" json:"severity"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	When        string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// SubstitutionConfig rewrites a risky verb into a lower-risk one
type SubstitutionConfig struct {
	Match   string `yaml:"match" json:"match"`
	Replace string `yaml:"replace" json:"replace"`
}
