package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/openwelfare/ubk/internal/domain"
)

func testApplication() *domain.Application {
	return &domain.Application{
		ID:            "app-001",
		FamilyHead:    "Aigul Asanova",
		RegionID:      "naryn",
		ChildrenCount: 2,
		FamilyMembers: []domain.FamilyMember{
			{Name: "Aigul Asanova", Age: 34, Relation: "mother", Income: 9000},
			{Name: "Bakyt Asanov", Age: 36, Relation: "father", Income: 3000},
			{Name: "Nurlan Asanov", Age: 8, Relation: "child", Income: 0},
			{Name: "Aida Asanova", Age: 5, Relation: "child", Income: 0},
		},
		MonthlyIncome: 12000,
		Documents: []string{
			"birth_certificates",
			"income_declaration",
			"residence_certificate",
		},
		SubmissionDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoadAndEvaluate(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	rule := &domain.ScreeningRule{
		ID:         "rule-low-income",
		Name:       "Suspiciously round income",
		Expression: `declared_income > 0.0 && int(declared_income) % 1000 == 0`,
		Weight:     10,
		Reason:     "declared income is a round number",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Fatalf("RulesCount() = %d, want 1", engine.RulesCount())
	}

	results := engine.Evaluate(testApplication())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Triggered {
		t.Error("rule should trigger on income 12000")
	}
	if r.Weight != 10 || r.Reason != "declared income is a round number" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Err != "" {
		t.Errorf("unexpected error: %s", r.Err)
	}
}

func TestEvaluateVariables(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	tests := []struct {
		name       string
		expression string
		triggered  bool
	}{
		{"per capita income", `per_capita_income < 3500.0`, true},
		{"family size", `family_size == 4`, true},
		{"children under 16", `children_under16 == 2`, true},
		{"children count", `children_count > 3`, false},
		{"region", `region == "naryn"`, true},
		{"head name", `head_name.startsWith("Aigul")`, true},
		{"day of month", `day_of_month > 25`, false},
		{"documents count", `documents_count < 3`, false},
		{"app map", `app.children_count == 2`, true},
		{"member list", `app.members.exists(m, m.age < 16)`, true},
		{"numeric output", `family_size - 4`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := engine.ReloadRules([]*domain.ScreeningRule{{
				ID:         "rule-x",
				Expression: tt.expression,
				Weight:     5,
				Reason:     "test",
				Enabled:    true,
			}}); err != nil {
				t.Fatalf("ReloadRules() error: %v", err)
			}

			results := engine.Evaluate(testApplication())
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Triggered != tt.triggered {
				t.Errorf("Triggered = %v, want %v", results[0].Triggered, tt.triggered)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	if err := engine.ValidateRule(&domain.ScreeningRule{
		ID:         "rule-ok",
		Expression: `region == "osh"`,
	}); err != nil {
		t.Errorf("valid rule rejected: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Error("ValidateRule must not load the rule")
	}

	if err := engine.ValidateRule(&domain.ScreeningRule{
		ID:         "rule-bad-syntax",
		Expression: `region ==`,
	}); err == nil {
		t.Error("expected compile error for bad syntax")
	}

	if err := engine.ValidateRule(&domain.ScreeningRule{
		ID:         "rule-bad-type",
		Expression: `region`,
	}); err == nil {
		t.Error("expected error for non-boolean, non-numeric output")
	} else if !strings.Contains(err.Error(), "must return bool") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := engine.ValidateRule(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestReloadReplacesAtomically(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	if err := engine.LoadRules([]*domain.ScreeningRule{
		{ID: "a", Expression: `true`, Enabled: true},
		{ID: "b", Expression: `true`, Enabled: true},
		{ID: "disabled", Expression: `true`, Enabled: false},
	}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if engine.RulesCount() != 2 {
		t.Fatalf("RulesCount() = %d, want 2 (disabled skipped)", engine.RulesCount())
	}

	// a broken reload leaves the current set untouched
	if err := engine.ReloadRules([]*domain.ScreeningRule{
		{ID: "c", Expression: `this is not CEL`, Enabled: true},
	}); err == nil {
		t.Fatal("expected reload error")
	}
	if engine.RulesCount() != 2 {
		t.Errorf("RulesCount() = %d after failed reload, want 2", engine.RulesCount())
	}

	if err := engine.ReloadRules([]*domain.ScreeningRule{
		{ID: "c", Expression: `family_size > 10`, Enabled: true},
	}); err != nil {
		t.Fatalf("ReloadRules() error: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("RulesCount() = %d, want 1", engine.RulesCount())
	}
}

func TestEvaluateDeterministicOrder(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	if err := engine.LoadRules([]*domain.ScreeningRule{
		{ID: "z-last", Expression: `true`, Enabled: true},
		{ID: "a-first", Expression: `true`, Enabled: true},
		{ID: "m-middle", Expression: `true`, Enabled: true},
	}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}

	results := engine.Evaluate(testApplication())
	want := []string{"a-first", "m-middle", "z-last"}
	for i, id := range want {
		if results[i].RuleID != id {
			t.Errorf("results[%d] = %s, want %s", i, results[i].RuleID, id)
		}
	}
}

func TestRuntimeErrorDoesNotTrigger(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	// compiles (dyn member access) but fails at runtime
	if err := engine.LoadRule(&domain.ScreeningRule{
		ID:         "rule-runtime",
		Expression: `app.missing_key == "x"`,
		Enabled:    true,
	}); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	results := engine.Evaluate(testApplication())
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Triggered {
		t.Error("errored rule must not trigger")
	}
	if results[0].Err == "" {
		t.Error("expected evaluation error to be reported")
	}
}

func TestEvaluateEmptyEngine(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	if results := engine.Evaluate(testApplication()); results != nil {
		t.Errorf("empty engine produced results: %v", results)
	}
}
