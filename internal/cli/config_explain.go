package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethosgate/ethosgate/internal/config"
	"github.com/ethosgate/ethosgate/internal/models"
)

// configExplainCmd outputs the gate configuration as a reviewable document
var configExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Output weights, thresholds and risk indicators",
	Long: `Display the constraint weights, gate thresholds, risk indicators and
substitution rules of a configuration in human-readable Markdown or
machine-readable JSON.

Example:
  ethosgate config explain --config strict
  ethosgate config explain --config baseline --json
  ethosgate config explain --config ./gate.yaml --output report.md`,
	SilenceUsage: true,
	RunE:         runConfigExplain,
}

var (
	explainConfig string
	explainJSON   bool
	explainOutput string
)

func init() {
	configExplainCmd.Flags().StringVarP(&explainConfig, "config", "c", "baseline", "Preset name (baseline, strict) or path to a config YAML file")
	configExplainCmd.Flags().BoolVar(&explainJSON, "json", false, "Output JSON instead of Markdown")
	configExplainCmd.Flags().StringVar(&explainOutput, "output", "", "Write output to file (default: stdout)")
}

// ExplainOutput is the JSON output schema
type ExplainOutput struct {
	SchemaVersion string               `json:"schema_version"`
	Source        ExplainSource        `json:"source"`
	GeneratedAt   string               `json:"generated_at"`
	Weights       models.WeightsConfig `json:"weights"`
	Gate          ExplainGate          `json:"gate"`
	Indicators    []ExplainIndicator   `json:"indicators"`
	Substitutions []ExplainSubstitute  `json:"substitutions"`
}

// ExplainSource identifies where the configuration came from
type ExplainSource struct {
	Type string `json:"type"` // "preset" or "file"
	Name string `json:"name"` // preset name or file path
}

// ExplainGate holds the scoring bounds and thresholds
type ExplainGate struct {
	KarmaExponent        float64 `json:"karma_exponent"`
	Threshold            float64 `json:"threshold"`
	ConfiguredLow        float64 `json:"configured_low"`
	CatastrophicSeverity float64 `json:"catastrophic_severity"`
	MaxBenefit           float64 `json:"max_benefit"`
	DefaultBenefit       float64 `json:"default_benefit"`
	BenefitKey           string  `json:"benefit_key"`
	ValidFor             string  `json:"valid_for,omitempty"`
}

// ExplainIndicator is one registry entry
type ExplainIndicator struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Severity    float64  `json:"severity"`
	Catastrophe bool     `json:"catastrophic"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords"`
	Requires    []string `json:"requires"`
	When        string   `json:"when,omitempty"`
}

// ExplainSubstitute is one rewrite rule
type ExplainSubstitute struct {
	Match   string `json:"match"`
	Replace string `json:"replace"`
}

func runConfigExplain(cmd *cobra.Command, args []string) error {
	snap, err := config.Resolve(explainConfig)
	if err != nil {
		return err
	}
	source := explainSourceFor(explainConfig)

	var output string
	if explainJSON {
		output, err = generateExplainJSON(snap, source)
	} else {
		output, err = generateExplainMarkdown(snap, source)
	}
	if err != nil {
		return err
	}

	if explainOutput != "" {
		if err := os.WriteFile(explainOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Output written to %s\n", explainOutput)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func explainSourceFor(ref string) ExplainSource {
	if ref == "" {
		ref = "baseline"
	}
	for _, name := range config.ListPresetNames() {
		if name == ref {
			return ExplainSource{Type: "preset", Name: ref}
		}
	}
	return ExplainSource{Type: "file", Name: ref}
}

func explainGate(cfg models.GateConfig, snap *config.Snapshot) ExplainGate {
	b := snap.Scorer().Bounds()
	return ExplainGate{
		KarmaExponent:        b.Exponent,
		Threshold:            snap.Thresholds().Threshold(),
		ConfiguredLow:        snap.Thresholds().Low(),
		CatastrophicSeverity: b.CatastrophicSeverity,
		MaxBenefit:           b.MaxBenefit,
		DefaultBenefit:       b.DefaultBenefit,
		BenefitKey:           b.BenefitKey,
		ValidFor:             cfg.ValidFor,
	}
}

// generateExplainJSON produces JSON output
func generateExplainJSON(snap *config.Snapshot, source ExplainSource) (string, error) {
	cfg := snap.Config()
	gate := explainGate(cfg, snap)
	output := ExplainOutput{
		SchemaVersion: "1.0",
		Source:        source,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Weights:       cfg.Weights,
		Gate:          gate,
		Indicators:    make([]ExplainIndicator, 0, snap.Registry().Len()),
		Substitutions: make([]ExplainSubstitute, 0, len(cfg.Substitutions)),
	}

	for _, ind := range snap.Registry().Indicators() {
		// nil slices become empty arrays in JSON
		keywords := ind.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		requires := ind.Requires
		if requires == nil {
			requires = []string{}
		}
		output.Indicators = append(output.Indicators, ExplainIndicator{
			Name:        ind.Name,
			Category:    categoryOrDefault(ind.Category),
			Severity:    ind.Severity,
			Catastrophe: ind.Severity > gate.CatastrophicSeverity,
			Description: ind.Description,
			Keywords:    keywords,
			Requires:    requires,
			When:        ind.When,
		})
	}
	for _, s := range cfg.Substitutions {
		output.Substitutions = append(output.Substitutions, ExplainSubstitute{Match: s.Match, Replace: s.Replace})
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes) + "\n", nil
}

// generateExplainMarkdown produces Markdown tables
func generateExplainMarkdown(snap *config.Snapshot, source ExplainSource) (string, error) {
	cfg := snap.Config()
	gate := explainGate(cfg, snap)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Gate configuration: %s\n\n", snap.Name()))
	sb.WriteString(fmt.Sprintf("**Source**: %s (`%s`)\n\n", source.Type, source.Name))

	sb.WriteString("## Weights\n\n")
	sb.WriteString("| Knowledge | Karma | Kindness | Karma exponent |\n")
	sb.WriteString("|-----------|-------|----------|----------------|\n")
	sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n\n",
		num(cfg.Weights.Knowledge), num(cfg.Weights.Karma), num(cfg.Weights.Kindness), num(gate.KarmaExponent)))

	sb.WriteString("## Gate\n\n")
	sb.WriteString(fmt.Sprintf("- Approve at or above **%s**\n", num(gate.Threshold)))
	sb.WriteString(fmt.Sprintf("- Transform between **%s** and **%s**\n", num(gate.ConfiguredLow), num(gate.Threshold)))
	sb.WriteString(fmt.Sprintf("- Reject below **%s**\n", num(gate.ConfiguredLow)))
	sb.WriteString(fmt.Sprintf("- Catastrophic severity above **%s**\n", num(gate.CatastrophicSeverity)))
	sb.WriteString(fmt.Sprintf("- Benefit from `%s` in [0, %s], default %s\n",
		gate.BenefitKey, num(gate.MaxBenefit), num(gate.DefaultBenefit)))
	if gate.ValidFor != "" {
		sb.WriteString(fmt.Sprintf("- Snapshot valid for %s\n", gate.ValidFor))
	}
	sb.WriteString("\n")

	sb.WriteString("## Risk indicators\n\n")
	sb.WriteString("| Indicator | Category | Severity | Keywords | Requires | When |\n")
	sb.WriteString("|-----------|----------|----------|----------|----------|------|\n")
	for _, ind := range snap.Registry().Indicators() {
		severity := num(ind.Severity)
		if ind.Severity > gate.CatastrophicSeverity {
			severity += " ⚠"
		}
		when := "-"
		if ind.When != "" {
			when = "`" + truncateExpr(ind.When, 120) + "`"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			ind.Name, categoryOrDefault(ind.Category), severity,
			formatSliceForMD(ind.Keywords), formatSliceForMD(ind.Requires), when))
	}
	sb.WriteString("\n")

	if len(cfg.Substitutions) > 0 {
		sb.WriteString("## Substitutions\n\n")
		sb.WriteString("| Match | Replace |\n")
		sb.WriteString("|-------|---------|\n")
		for _, s := range cfg.Substitutions {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", s.Match, s.Replace))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func categoryOrDefault(c string) string {
	if c == "" {
		return "general"
	}
	return c
}

// formatSliceForMD formats a string slice for a Markdown table cell
func formatSliceForMD(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// truncateExpr shortens CEL expressions for table display
func truncateExpr(expr string, maxLen int) string {
	expr = strings.Join(strings.Fields(expr), " ")
	if len(expr) <= maxLen {
		return expr
	}
	return expr[:maxLen-1] + "…"
}
