package engine

import (
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

func TestEligibleIncomeBoundary(t *testing.T) {
	rule := NewEligibilityRule(domain.DefaultPolicy())

	// 4 members, threshold 6000 => total boundary at 24000.
	tests := []struct {
		name     string
		total    int64
		eligible bool
	}{
		{"well below threshold", 12000, true},
		{"one som below threshold", 23999, true},
		{"exactly at threshold", 24000, false},
		{"above threshold", 30000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApplication()
			app.FamilyMembers[0].Income = tt.total
			for i := 1; i < len(app.FamilyMembers); i++ {
				app.FamilyMembers[i].Income = 0
			}
			if got := rule.Eligible(app); got != tt.eligible {
				t.Errorf("Eligible() = %v, want %v for total income %d", got, tt.eligible, tt.total)
			}
		})
	}
}

func TestNoChildrenNeverEligible(t *testing.T) {
	rule := NewEligibilityRule(domain.DefaultPolicy())

	app := testApplication()
	app.FamilyMembers = []domain.FamilyMember{
		{Name: "Aigul Asanova", Age: 34, Relation: "mother", Income: 0},
		{Name: "Bakyt Asanov", Age: 36, Relation: "father", Income: 0},
	}
	app.ChildrenCount = 0

	// Zero income, but no children under 16.
	if rule.Eligible(app) {
		t.Error("household without children under 16 must not be eligible")
	}
}

func TestValidateCleanApplication(t *testing.T) {
	rule := NewEligibilityRule(domain.DefaultPolicy())

	valid, issues := rule.Validate(testApplication())
	if !valid {
		t.Errorf("expected valid application, got issues: %v", issues)
	}
}

func TestValidateAccumulatesFindings(t *testing.T) {
	rule := NewEligibilityRule(domain.DefaultPolicy())

	t.Run("ChildrenCountMismatch", func(t *testing.T) {
		app := testApplication()
		app.ChildrenCount = 3 // only 2 members are under 16

		valid, issues := rule.Validate(app)
		if valid {
			t.Fatal("expected invalid application")
		}
		if len(issues) != 1 || issues[0] != "children count mismatch with family composition" {
			t.Errorf("unexpected issues: %v", issues)
		}
	})

	t.Run("MissingDocument", func(t *testing.T) {
		app := testApplication()
		app.Documents = []string{"birth_certificates", "income_declaration"}

		valid, issues := rule.Validate(app)
		if valid {
			t.Fatal("expected invalid application")
		}
		if len(issues) != 1 || issues[0] != "missing required document: residence_certificate" {
			t.Errorf("unexpected issues: %v", issues)
		}
	})

	t.Run("IncomeInconsistency", func(t *testing.T) {
		app := testApplication()
		app.MonthlyIncome = 11000 // members sum to 12000

		valid, issues := rule.Validate(app)
		if valid {
			t.Fatal("expected invalid application")
		}
		if len(issues) != 1 || issues[0] != "income declaration inconsistency" {
			t.Errorf("unexpected issues: %v", issues)
		}
	})

	t.Run("AllThreeAtOnce", func(t *testing.T) {
		app := testApplication()
		app.Documents = nil
		app.ChildrenCount = 5
		app.MonthlyIncome = 1

		valid, issues := rule.Validate(app)
		if valid {
			t.Fatal("expected invalid application")
		}
		// 3 missing documents + count mismatch + income inconsistency.
		if len(issues) != 5 {
			t.Errorf("expected 5 issues, got %d: %v", len(issues), issues)
		}
	})
}

func TestValidationDoesNotAffectEligibility(t *testing.T) {
	rule := NewEligibilityRule(domain.DefaultPolicy())

	app := testApplication()
	app.Documents = nil // invalid, but still income-eligible

	if !rule.Eligible(app) {
		t.Error("validation findings must not change eligibility")
	}
}
