package safety

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one Layer 1 blocklist entry. Keywords match case-insensitively as
// substrings; patterns are regular expressions.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns"`
}

type compiledRule struct {
	name     string
	keywords []string
	patterns []*regexp.Regexp
}

// RuleSet is the compiled Layer 1 blocklist.
type RuleSet struct {
	rules []compiledRule
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads and compiles a YAML blocklist file.
func LoadRules(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return CompileRules(f.Rules)
}

// CompileRules compiles rule definitions into a RuleSet.
func CompileRules(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, r := range rules {
		cr := compiledRule{name: r.Name}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				cr.keywords = append(cr.keywords, kw)
			}
		}
		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("compile rule %q pattern %q: %w", r.Name, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		if len(cr.keywords) > 0 || len(cr.patterns) > 0 {
			rs.rules = append(rs.rules, cr)
		}
	}
	return rs, nil
}

// DefaultRules returns a minimal built-in blocklist used when no rules file
// is configured.
func DefaultRules() *RuleSet {
	rs, err := CompileRules([]Rule{
		{
			Name:     "contact_solicitation",
			Keywords: []string{"加line", "加賴", "加我line", "私訊我"},
		},
		{
			Name:     "gambling",
			Keywords: []string{"博弈", "娛樂城", "線上賭場"},
		},
		{
			Name:     "loan_offer",
			Patterns: []string{`(快速|當日|免擔保)[撥放]款`},
		},
	})
	if err != nil {
		panic(err)
	}
	return rs
}

// Match returns the name of the first matching rule, or "" when no rule
// fires. A rule hit is advisory evidence for escalation, never a verdict.
func (rs *RuleSet) Match(text string) string {
	if rs == nil || text == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	for _, r := range rs.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lowered, kw) {
				return r.name
			}
		}
		for _, p := range r.patterns {
			if p.MatchString(text) {
				return r.name
			}
		}
	}
	return ""
}
