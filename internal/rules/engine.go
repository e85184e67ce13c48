// Package rules provides a YAML-based rules engine for transaction-kind
// classification: payee descriptions are matched against prioritized
// patterns to assign a staged transaction's kind before review.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against descriptions.
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description.
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring.
	MatchTypeContains MatchType = "contains"
	// MatchTypePrefix requires the description to start with the pattern.
	MatchTypePrefix MatchType = "prefix"
)

// Rule is a single classification rule. Create rules via YAML loading
// (NewEngine, LoadEmbedded, LoadFromFile) or NewRule; both paths validate
// every invariant. Direct struct construction bypasses validation; fields
// are exported for YAML unmarshaling.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Kind      string    `yaml:"kind"`
}

// NewRule creates a validated rule for programmatic construction.
func NewRule(name, pattern string, matchType MatchType, priority int, kind string) (*Rule, error) {
	rule := Rule{Name: name, Pattern: pattern, MatchType: matchType, Priority: priority, Kind: kind}
	if err := validateRule(&rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

func validateRule(rule *Rule) error {
	if !domain.ValidateTransactionKind(domain.TransactionKind(rule.Kind)) {
		return fmt.Errorf("invalid kind %q", rule.Kind)
	}
	if rule.Priority < 0 || rule.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", rule.Priority)
	}
	switch rule.MatchType {
	case MatchTypeExact, MatchTypeContains, MatchTypePrefix:
	default:
		return fmt.Errorf("invalid match_type %q (must be 'exact', 'contains', or 'prefix')", rule.MatchType)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	return nil
}

// RuleSet is the top-level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Engine performs rule matching on transaction descriptions.
type Engine struct {
	rules []Rule // sorted by priority, highest first
}

// NewEngine creates a rules engine from YAML data.
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := validateRule(&rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Stable sort preserves YAML order for equal priorities, guaranteeing
	// deterministic matching.
	sortedRules := make([]Rule, len(ruleSet.Rules))
	copy(sortedRules, ruleSet.Rules)
	sort.SliceStable(sortedRules, func(i, j int) bool {
		return sortedRules[i].Priority > sortedRules[j].Priority
	})

	return &Engine{rules: sortedRules}, nil
}

// LoadEmbedded loads the embedded rules.yaml file.
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads rules from a filesystem path.
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Classify applies rules to a description in priority order and returns the
// kind of the first match. Returns false when no rule matches.
func (e *Engine) Classify(description string) (domain.TransactionKind, bool) {
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	for _, rule := range e.rules {
		normalizedPattern := strings.ToLower(strings.TrimSpace(rule.Pattern))

		matched := false
		switch rule.MatchType {
		case MatchTypeExact:
			matched = normalizedDesc == normalizedPattern
		case MatchTypeContains:
			matched = strings.Contains(normalizedDesc, normalizedPattern)
		case MatchTypePrefix:
			matched = strings.HasPrefix(normalizedDesc, normalizedPattern)
		}

		if matched {
			return domain.TransactionKind(rule.Kind), true
		}
	}

	return "", false
}

// GetRules returns a copy of the rules in priority order for inspection.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
