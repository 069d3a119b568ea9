package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

func TestNewEngine_ValidRules(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Test Rule"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if len(engine.rules) != 1 {
		t.Errorf("NewEngine() rules count = %d, want 1", len(engine.rules))
	}

	rule := engine.rules[0]
	if rule.Name != "Test Rule" {
		t.Errorf("rule.Name = %s, want Test Rule", rule.Name)
	}
	if rule.Priority != 100 {
		t.Errorf("rule.Priority = %d, want 100", rule.Priority)
	}
	if rule.Category != "groceries" {
		t.Errorf("rule.Category = %s, want groceries", rule.Category)
	}
}

func TestNewEngine_InvalidPriority(t *testing.T) {
	tests := []struct {
		name     string
		priority int
	}{
		{"negative priority", -1},
		{"priority too high", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rulesYAML := fmt.Sprintf(`
rules:
  - name: "Invalid Priority"
    pattern: "TEST"
    match_type: "contains"
    priority: %d
    category: "groceries"
`, tt.priority)
			if _, err := NewEngine([]byte(rulesYAML)); err == nil {
				t.Error("NewEngine() expected error for out-of-range priority")
			}
		})
	}
}

func TestNewEngine_InvalidMatchType(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Bad Match Type"
    pattern: "TEST"
    match_type: "regex"
    priority: 100
    category: "groceries"
`
	if _, err := NewEngine([]byte(rulesYAML)); err == nil {
		t.Error("NewEngine() expected error for unsupported match_type")
	}
}

func TestNewEngine_EmptyPattern(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Empty Pattern"
    pattern: "   "
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	if _, err := NewEngine([]byte(rulesYAML)); err == nil {
		t.Error("NewEngine() expected error for blank pattern")
	}
}

func TestNewEngine_InvalidTypeOverride(t *testing.T) {
	rulesYAML := `
rules:
  - name: "Bad Type"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "transfers"
    type: "sideways"
`
	if _, err := NewEngine([]byte(rulesYAML)); err == nil {
		t.Error("NewEngine() expected error for invalid type override")
	}
}

func TestNewEngine_MalformedYAML(t *testing.T) {
	if _, err := NewEngine([]byte("rules:\n  - name: [broken")); err == nil {
		t.Error("NewEngine() expected error for malformed YAML")
	}
}

func TestMatch_PriorityOrder(t *testing.T) {
	rulesYAML := `
rules:
  - name: "low"
    pattern: "coffee"
    match_type: "contains"
    priority: 100
    category: "dining"
  - name: "high"
    pattern: "coffee shop"
    match_type: "contains"
    priority: 500
    category: "coffee"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, ok := engine.Match("DOWNTOWN COFFEE SHOP #42")
	if !ok {
		t.Fatal("Match() expected a match")
	}
	if result.RuleName != "high" {
		t.Errorf("Match() rule = %s, want high (priority order)", result.RuleName)
	}
	if result.Category != "coffee" {
		t.Errorf("Match() category = %s, want coffee", result.Category)
	}
}

func TestMatch_EqualPriorityKeepsFileOrder(t *testing.T) {
	rulesYAML := `
rules:
  - name: "first"
    pattern: "store"
    match_type: "contains"
    priority: 100
    category: "shopping"
  - name: "second"
    pattern: "store"
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	result, ok := engine.Match("CORNER STORE")
	if !ok {
		t.Fatal("Match() expected a match")
	}
	if result.RuleName != "first" {
		t.Errorf("Match() rule = %s, want first (file order on tie)", result.RuleName)
	}
}

func TestMatch_MatchTypes(t *testing.T) {
	rulesYAML := `
rules:
  - name: "exact"
    pattern: "rent"
    match_type: "exact"
    priority: 300
    category: "housing"
  - name: "prefix"
    pattern: "uber"
    match_type: "prefix"
    priority: 200
    category: "transport"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	tests := []struct {
		desc     string
		wantRule string
		wantOK   bool
	}{
		{"RENT", "exact", true},
		{"  rent  ", "exact", true},
		{"rent payment", "", false},
		{"UBER TRIP 12345", "prefix", true},
		{"my uber ride", "", false},
	}

	for _, tt := range tests {
		result, ok := engine.Match(tt.desc)
		if ok != tt.wantOK {
			t.Errorf("Match(%q) ok = %v, want %v", tt.desc, ok, tt.wantOK)
			continue
		}
		if ok && result.RuleName != tt.wantRule {
			t.Errorf("Match(%q) rule = %s, want %s", tt.desc, result.RuleName, tt.wantRule)
		}
	}
}

func TestApply(t *testing.T) {
	rulesYAML := `
rules:
  - name: "card-payment"
    pattern: "online payment"
    match_type: "contains"
    priority: 900
    category: "transfers"
    type: "transfer"
  - name: "grocer"
    pattern: "grocer"
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	txns := []domain.Transaction{
		{MerchantRaw: "CITY GROCER #4", MerchantClean: "CITY GROCER #4", Category: domain.DefaultCategory, Type: domain.TxnExpense},
		{MerchantRaw: "ONLINE PAYMENT - THANK YOU", MerchantClean: "ONLINE PAYMENT - THANK YOU", Category: domain.DefaultCategory, Type: domain.TxnIncome},
		{MerchantRaw: "CITY GROCER #4", MerchantClean: "CITY GROCER #4", Category: "Dining", Type: domain.TxnExpense},
		{MerchantRaw: "UNMATCHED", MerchantClean: "UNMATCHED", Category: domain.DefaultCategory, Type: domain.TxnExpense},
	}

	engine.Apply(txns)

	if txns[0].Category != "groceries" {
		t.Errorf("txns[0].Category = %s, want groceries", txns[0].Category)
	}
	if txns[1].Type != domain.TxnTransfer {
		t.Errorf("txns[1].Type = %s, want transfer override", txns[1].Type)
	}
	if txns[2].Category != "Dining" {
		t.Errorf("txns[2].Category = %s, source category must be kept", txns[2].Category)
	}
	if txns[3].Category != domain.DefaultCategory {
		t.Errorf("txns[3].Category = %s, want default placeholder", txns[3].Category)
	}
}

func TestLoadEmbedded(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(engine.GetRules()) == 0 {
		t.Error("LoadEmbedded() returned no rules")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rulesYAML := `
rules:
  - name: "file-rule"
    pattern: "TEST"
    match_type: "contains"
    priority: 100
    category: "groceries"
`
	if err := os.WriteFile(path, []byte(rulesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	engine, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if len(engine.GetRules()) != 1 {
		t.Errorf("LoadFromFile() rules count = %d, want 1", len(engine.GetRules()))
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFromFile() expected error for missing file")
	}
}
