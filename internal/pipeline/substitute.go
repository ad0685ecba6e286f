package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethosgate/ethosgate/internal/models"
)

// Substituter proposes a lower-risk alternative for a transformed action.
// Implementations must be deterministic and safe for concurrent use.
type Substituter interface {
	Substitute(description string, est models.ConsequenceEstimate) string
}

type rewriteRule struct {
	pattern *regexp.Regexp
	replace string
}

// RuleSubstituter rewrites the first matching verb; with no match it falls
// back to information gathering about the original action.
type RuleSubstituter struct {
	rules []rewriteRule
}

// NewRuleSubstituter compiles the configured rewrite rules in order
func NewRuleSubstituter(subs []models.SubstitutionConfig) (*RuleSubstituter, error) {
	rules := make([]rewriteRule, 0, len(subs))
	for i, s := range subs {
		match := strings.TrimSpace(s.Match)
		if match == "" || strings.TrimSpace(s.Replace) == "" {
			return nil, models.Configf(fmt.Sprintf("substitutions[%d]", i), "match and replace must both be set")
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(match) + `\b`)
		if err != nil {
			return nil, models.Configf(fmt.Sprintf("substitutions[%d].match", i), "%v", err)
		}
		rules = append(rules, rewriteRule{pattern: re, replace: s.Replace})
	}
	return &RuleSubstituter{rules: rules}, nil
}

// Substitute implements Substituter
func (r *RuleSubstituter) Substitute(description string, _ models.ConsequenceEstimate) string {
	for _, rule := range r.rules {
		loc := rule.pattern.FindStringIndex(description)
		if loc == nil {
			continue
		}
		return description[:loc[0]] + rule.replace + description[loc[1]:]
	}
	return fmt.Sprintf("Engage in information gathering related to '%s'", description)
}
