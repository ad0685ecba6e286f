package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethosgate/ethosgate/internal/config"
)

func TestConfigExplain_JSON(t *testing.T) {
	snap, err := config.Preset("baseline")
	if err != nil {
		t.Fatalf("baseline preset: %v", err)
	}

	source := ExplainSource{Type: "preset", Name: "baseline"}
	output, err := generateExplainJSON(snap, source)
	if err != nil {
		t.Fatalf("generateExplainJSON failed: %v", err)
	}

	var result ExplainOutput
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if result.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want %q", result.SchemaVersion, "1.0")
	}
	if result.Source != source {
		t.Errorf("source = %+v, want %+v", result.Source, source)
	}
	if result.GeneratedAt == "" {
		t.Error("generated_at should not be empty")
	}
	if result.Weights.Karma != -10 {
		t.Errorf("weights.karma = %v, want -10", result.Weights.Karma)
	}
	if result.Gate.Threshold != 0.5 || result.Gate.ConfiguredLow != -5 {
		t.Errorf("gate = %+v, want threshold 0.5 and low -5", result.Gate)
	}
	if len(result.Indicators) == 0 {
		t.Fatal("indicators should not be empty")
	}

	byName := make(map[string]ExplainIndicator)
	for _, ind := range result.Indicators {
		byName[ind.Name] = ind
	}
	elim, ok := byName["strategic_elimination"]
	if !ok {
		t.Fatal("strategic_elimination missing")
	}
	if !elim.Catastrophe {
		t.Error("strategic_elimination (severity 4 > 3) should be marked catastrophic")
	}
	if elim.Description == "" {
		t.Error("indicator description should be carried from the registry")
	}
	if income := byName["income_pressure"]; income.Catastrophe {
		t.Error("income_pressure should not be marked catastrophic")
	}
	if len(result.Substitutions) == 0 {
		t.Error("substitutions should not be empty")
	}
}

func TestConfigExplain_Markdown(t *testing.T) {
	snap, err := config.Preset("strict")
	if err != nil {
		t.Fatalf("strict preset: %v", err)
	}

	output, err := generateExplainMarkdown(snap, ExplainSource{Type: "preset", Name: "strict"})
	if err != nil {
		t.Fatalf("generateExplainMarkdown failed: %v", err)
	}

	for _, want := range []string{
		"# Gate configuration: strict",
		"**Source**: preset (`strict`)",
		"| Knowledge | Karma | Kindness | Karma exponent |",
		"| Indicator | Category | Severity | Keywords | Requires | When |",
		"strategic_elimination",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("markdown should contain %q", want)
		}
	}
}

func TestConfigExplain_TruncateExpr(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		maxLen int
		want   string
	}{
		{
			name:   "short expr unchanged",
			expr:   `input.attributes.user_intent == "Strategic Elimination"`,
			maxLen: 120,
			want:   `input.attributes.user_intent == "Strategic Elimination"`,
		},
		{
			name:   "long expr truncated",
			expr:   strings.Repeat("a", 150),
			maxLen: 120,
			want:   strings.Repeat("a", 119) + "…",
		},
		{
			name:   "multiline collapsed",
			expr:   "input.attributes.reversible == \"no\"\n&&   input.attributes.impact >= 0.7",
			maxLen: 120,
			want:   "input.attributes.reversible == \"no\" && input.attributes.impact >= 0.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateExpr(tt.expr, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncateExpr(%q, %d) = %q, want %q", tt.expr, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestConfigExplain_FormatSlice(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"nil slice", nil, "-"},
		{"empty slice", []string{}, "-"},
		{"single item", []string{"user_intent"}, "user_intent"},
		{"multiple items", []string{"A", "B", "C"}, "A, B, C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatSliceForMD(tt.items)
			if got != tt.want {
				t.Errorf("formatSliceForMD(%v) = %q, want %q", tt.items, got, tt.want)
			}
		})
	}
}

func TestConfigExplain_ShowsCompiledKeywords(t *testing.T) {
	snap, err := config.Parse([]byte(`
name: test
weights: {knowledge: 1, karma: -10, kindness: 1}
threshold: 0.5
configured_low: -5
catastrophic_severity: 3
indicators:
  - name: mixed_case
    severity: 1
    keywords: ["  Purge "]
`), "test.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	output, err := generateExplainMarkdown(snap, ExplainSource{Type: "file", Name: "test.yaml"})
	if err != nil {
		t.Fatalf("generateExplainMarkdown failed: %v", err)
	}
	if !strings.Contains(output, "| mixed_case | general | 1.0000 | purge |") {
		t.Errorf("expected the normalized keyword in the indicator row:\n%s", output)
	}
}

func TestConfigExplain_JSONNilSlicesAsEmptyArrays(t *testing.T) {
	snap, err := config.Parse([]byte(`
name: test
weights: {knowledge: 1, karma: -10, kindness: 1}
threshold: 0.5
configured_low: -5
catastrophic_severity: 3
indicators:
  - name: keyword_only
    severity: 1
    keywords: [purge]
`), "test.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	output, err := generateExplainJSON(snap, ExplainSource{Type: "file", Name: "test.yaml"})
	if err != nil {
		t.Fatalf("generateExplainJSON failed: %v", err)
	}

	if strings.Contains(output, `"requires": null`) {
		t.Error("requires should be empty array [], not null")
	}
	if !strings.Contains(output, `"requires": []`) {
		t.Error("requires should be empty array []")
	}
	if !strings.Contains(output, `"substitutions": []`) {
		t.Error("substitutions should be empty array []")
	}
	if !strings.Contains(output, `"category": "general"`) {
		t.Error("missing category should default to general")
	}
}

func TestExplainSourceFor(t *testing.T) {
	if got := explainSourceFor("strict"); got.Type != "preset" {
		t.Errorf("strict: type = %q, want preset", got.Type)
	}
	if got := explainSourceFor(""); got != (ExplainSource{Type: "preset", Name: "baseline"}) {
		t.Errorf("empty ref = %+v, want baseline preset", got)
	}
	if got := explainSourceFor("./gate.yaml"); got.Type != "file" {
		t.Errorf("path: type = %q, want file", got.Type)
	}
}
