// Package rules provides a YAML-based rules engine for merchant categorization.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

//go:embed rules.yaml
var embeddedRules []byte

// MatchType defines how patterns are matched against merchant descriptions.
type MatchType string

const (
	// MatchTypeExact requires the pattern to match the entire description exactly.
	MatchTypeExact MatchType = "exact"
	// MatchTypeContains requires the pattern to be a substring of the description.
	MatchTypeContains MatchType = "contains"
	// MatchTypePrefix requires the description to start with the pattern.
	MatchTypePrefix MatchType = "prefix"
)

// Rule represents a single categorization rule.
//
// Rules should be created via YAML loading (NewEngine, LoadEmbedded,
// LoadFromFile); all loaders validate every invariant:
//   - Priority in range [0, 999]
//   - Pattern must not be empty after trimming
//   - MatchType must be "exact", "contains" or "prefix"
//   - Type, when set, must be a valid transaction type
//
// Direct struct construction bypasses validation. Fields are exported for
// YAML unmarshaling and testing.
type Rule struct {
	Name      string    `yaml:"name"`
	Pattern   string    `yaml:"pattern"`
	MatchType MatchType `yaml:"match_type"`
	Priority  int       `yaml:"priority"`
	Category  string    `yaml:"category"`
	// Type optionally overrides the sign-derived transaction type, e.g. to
	// mark card payments as transfers so they are excluded from cash flow.
	Type domain.TxnType `yaml:"type,omitempty"`
}

func (r *Rule) validate() error {
	if r.Priority < 0 || r.Priority > 999 {
		return fmt.Errorf("priority must be in [0,999], got %d", r.Priority)
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if r.MatchType != MatchTypeExact && r.MatchType != MatchTypeContains && r.MatchType != MatchTypePrefix {
		return fmt.Errorf("invalid match_type %q (must be 'exact', 'contains' or 'prefix')", r.MatchType)
	}
	if r.Category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if r.Type != "" && !domain.ValidateTxnType(r.Type) {
		return fmt.Errorf("invalid type override %q", r.Type)
	}
	return nil
}

// RuleSet represents the top-level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// MatchResult contains the result of applying a rule.
type MatchResult struct {
	Category string
	Type     domain.TxnType // empty when the rule does not override
	RuleName string         // For debugging
}

// Engine performs rule matching on merchant descriptions.
type Engine struct {
	rules []Rule // Sorted by priority (highest first)
}

// NewEngine creates a rules engine from YAML data.
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if err := rule.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
	}

	// Sort rules by priority (highest first). Use SliceStable to preserve YAML
	// file order for rules with equal priority (guarantees deterministic matching).
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

// Match applies rules to a merchant description and returns the first match.
// Rules are evaluated in priority order (highest first). Rules with equal
// priority are evaluated in their original YAML file order. Returns
// (nil, false) if no rules match.
func (e *Engine) Match(description string) (*MatchResult, bool) {
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
			return &MatchResult{
				Category: rule.Category,
				Type:     rule.Type,
				RuleName: rule.Name,
			}, true
		}
	}

	return nil, false
}

// Apply categorizes a batch of transactions in place. Transactions that
// already carry a source-provided category keep it; only the default
// placeholder is replaced. Type overrides from matched rules always apply.
func (e *Engine) Apply(txns []domain.Transaction) {
	for i := range txns {
		result, ok := e.Match(txns[i].MerchantClean)
		if !ok {
			result, ok = e.Match(txns[i].MerchantRaw)
		}
		if !ok {
			continue
		}
		if txns[i].Category == "" || txns[i].Category == domain.DefaultCategory {
			txns[i].Category = result.Category
		}
		if result.Type != "" {
			txns[i].Type = result.Type
		}
	}
}

// GetRules returns a copy of the rules for inspection/debugging. Rules are
// returned in priority order (highest first); equal priorities appear in
// YAML file order.
func (e *Engine) GetRules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
