// Package projector derives an unseen-consequence estimate from a visible action.
package projector

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethosgate/ethosgate/internal/models"
	"github.com/google/cel-go/cel"
)

// Indicator is a compiled risk indicator
type Indicator struct {
	Name        string
	Category    string
	Description string
	Severity    float64
	Keywords    []string
	Requires    []string
	When        string

	program  cel.Program
	patterns []*regexp.Regexp
}

// Registry of risk indicators, read-only after construction
type Registry struct {
	indicators []Indicator
}

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewRegistry compiles every indicator. Any invalid indicator fails the whole
// registry with a ConfigurationError.
func NewRegistry(configs []models.IndicatorConfig) (*Registry, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(configs))
	indicators := make([]Indicator, 0, len(configs))
	for i, c := range configs {
		field := fmt.Sprintf("indicators[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			return nil, models.Configf(field+".name", "must not be empty")
		}
		if seen[c.Name] {
			return nil, models.Configf(field+".name", "duplicate indicator %q", c.Name)
		}
		seen[c.Name] = true

		if math.IsNaN(c.Severity) || math.IsInf(c.Severity, 0) || c.Severity < 0 {
			return nil, models.Configf(field+".severity", "must be a finite non-negative number, got %v", c.Severity)
		}
		if len(c.Keywords) == 0 && strings.TrimSpace(c.When) == "" {
			return nil, models.Configf(field, "indicator %q needs keywords or a when expression", c.Name)
		}

		ind := Indicator{
			Name:        c.Name,
			Category:    c.Category,
			Description: c.Description,
			Severity:    c.Severity,
			Requires:    append([]string{}, c.Requires...),
			When:        c.When,
		}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				return nil, models.Configf(field+".keywords", "empty keyword in indicator %q", c.Name)
			}
			ind.Keywords = append(ind.Keywords, kw)
			ind.patterns = append(ind.patterns, keywordPattern(kw))
		}

		if strings.TrimSpace(c.When) != "" {
			prg, err := compile(env, c.When)
			if err != nil {
				return nil, models.Configf(field+".when", "indicator %q: %v", c.Name, err)
			}
			ind.program = prg
		}

		indicators = append(indicators, ind)
	}

	return &Registry{indicators: indicators}, nil
}

// keywordPattern matches kw as whole words, case-insensitively; runs of
// whitespace inside kw match any whitespace.
func keywordPattern(kw string) *regexp.Regexp {
	words := strings.Fields(kw)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	expr := strings.Join(words, `\s+`)
	if r, _ := utf8.DecodeRuneInString(kw); isWordRune(r) {
		expr = `\b` + expr
	}
	if r, _ := utf8.DecodeLastRuneInString(kw); isWordRune(r) {
		expr += `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

func isWordRune(r rune) bool {
	return r == '_' || r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// compile and type-check
func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %v", issues.Err())
	}

	ot := ast.OutputType()
	if !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return boolean, got %s", ot)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %v", err)
	}
	return prg, nil
}

// Len of registry
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.indicators)
}

// Indicators returns a copy in registry order
func (r *Registry) Indicators() []Indicator {
	if r == nil {
		return nil
	}
	out := make([]Indicator, len(r.indicators))
	copy(out, r.indicators)
	return out
}
