package engine

import (
	"testing"
	"time"

	"github.com/openwelfare/ubk/internal/domain"
)

func TestScoreCleanApplication(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	score, factors := scorer.Score(testApplication())
	if score != 0 {
		t.Errorf("score = %d, want 0; factors: %v", score, factors)
	}
	if len(factors) != 0 {
		t.Errorf("unexpected factors: %v", factors)
	}
}

func TestScoreIndividualFactors(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	tests := []struct {
		name   string
		mutate func(*domain.Application)
		weight int
		factor string
	}{
		{
			name: "extremely low income",
			mutate: func(a *domain.Application) {
				// per-capita 400 < 30% of 6000
				a.FamilyMembers[0].Income = 1600
				a.FamilyMembers[1].Income = 0
				a.MonthlyIncome = 1600
			},
			weight: 25,
			factor: "extremely low declared income",
		},
		{
			name: "income near threshold",
			mutate: func(a *domain.Application) {
				// per-capita 5600: above 90% of 6000, below 6000
				a.FamilyMembers[0].Income = 22400
				a.FamilyMembers[1].Income = 0
				a.MonthlyIncome = 22400
			},
			weight: 15,
			factor: "income suspiciously close to threshold",
		},
		{
			name: "late month submission",
			mutate: func(a *domain.Application) {
				a.SubmissionDate = time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC)
			},
			weight: 10,
			factor: "end-of-month submission pattern",
		},
		{
			name: "high risk region",
			mutate: func(a *domain.Application) {
				a.RegionID = "osh"
			},
			weight: 10,
			factor: "high-risk geographic region",
		},
		{
			name: "parent-child age gap",
			mutate: func(a *domain.Application) {
				// oldest adult 24, oldest minor 15: gap 9 < 16
				a.FamilyMembers = []domain.FamilyMember{
					{Name: "Aigul Asanova", Age: 24, Relation: "mother", Income: 9000},
					{Name: "Nurlan Asanov", Age: 15, Relation: "child", Income: 0},
				}
				a.ChildrenCount = 1
				a.MonthlyIncome = 9000
			},
			weight: 15,
			factor: "suspicious age distribution in family",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApplication()
			tt.mutate(app)

			score, factors := scorer.Score(app)
			if score != tt.weight {
				t.Errorf("score = %d, want %d; factors: %v", score, tt.weight, factors)
			}
			if len(factors) != 1 || factors[0] != tt.factor {
				t.Errorf("factors = %v, want [%q]", factors, tt.factor)
			}
		})
	}
}

func TestScoreLargeFamilyAndDependents(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	app := testApplication()
	// 9 members, 5 children under 16, no working adults.
	app.FamilyMembers = []domain.FamilyMember{
		{Name: "Gulnara Toktomambetova", Age: 40, Relation: "mother", Income: 0},
		{Name: "Azamat Toktomambetov", Age: 44, Relation: "father", Income: 0},
		{Name: "Ulan", Age: 19, Relation: "child", Income: 0},
		{Name: "Meerim", Age: 17, Relation: "child", Income: 0},
		{Name: "Erkin", Age: 14, Relation: "child", Income: 0},
		{Name: "Ainura", Age: 12, Relation: "child", Income: 0},
		{Name: "Tilek", Age: 9, Relation: "child", Income: 0},
		{Name: "Saltanat", Age: 6, Relation: "child", Income: 0},
		{Name: "Emir", Age: 2, Relation: "child", Income: 0},
	}
	app.ChildrenCount = 5
	app.MonthlyIncome = 0

	score, factors := scorer.Score(app)
	// extremely low income (25) + large family (20) + many dependents
	// without working adults (30) = 75
	if score != 75 {
		t.Errorf("score = %d, want 75; factors: %v", score, factors)
	}
	if len(factors) != 3 {
		t.Errorf("expected 3 factors, got %v", factors)
	}
}

func TestScoreCapsAtHundred(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	app := testApplication()
	// Every co-triggerable heuristic at once: zero income, 9 members,
	// 4 young children with no working adult, late submission, high-risk
	// region, implausible age gap. Raw total 110, capped at 100.
	app.RegionID = "batken"
	app.SubmissionDate = time.Date(2025, 3, 27, 0, 0, 0, 0, time.UTC)
	app.FamilyMembers = []domain.FamilyMember{
		{Name: "Aizat", Age: 29, Relation: "mother", Income: 0},
		{Name: "Nurbek", Age: 31, Relation: "father", Income: 0},
		{Name: "Kanat", Age: 21, Relation: "child", Income: 0},
		{Name: "Begimai", Age: 19, Relation: "child", Income: 0},
		{Name: "Adilet", Age: 17, Relation: "child", Income: 0},
		{Name: "Aisuluu", Age: 15, Relation: "child", Income: 0},
		{Name: "Omurbek", Age: 12, Relation: "child", Income: 0},
		{Name: "Nazgul", Age: 8, Relation: "child", Income: 0},
		{Name: "Temirlan", Age: 4, Relation: "child", Income: 0},
	}
	app.ChildrenCount = 4
	app.MonthlyIncome = 0

	score, factors := scorer.Score(app)
	if score != 100 {
		t.Errorf("score = %d, want 100 (capped); factors: %v", score, factors)
	}
	if len(factors) != 6 {
		t.Errorf("expected 6 factors, got %d: %v", len(factors), factors)
	}
}

func TestLevelThresholds(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	tests := []struct {
		score int
		level string
	}{
		{0, domain.RiskLow},
		{39, domain.RiskLow},
		{40, domain.RiskMedium},
		{69, domain.RiskMedium},
		{70, domain.RiskHigh},
		{100, domain.RiskHigh},
	}
	for _, tt := range tests {
		if got := scorer.Level(tt.score); got != tt.level {
			t.Errorf("Level(%d) = %q, want %q", tt.score, got, tt.level)
		}
	}
}

func TestAgeGapNoAdults(t *testing.T) {
	scorer := NewRiskScorer(domain.DefaultPolicy())

	app := testApplication()
	app.FamilyMembers = []domain.FamilyMember{
		{Name: "Meerim", Age: 15, Relation: "child", Income: 9000},
		{Name: "Erkin", Age: 12, Relation: "child", Income: 3000},
	}
	app.ChildrenCount = 2
	app.MonthlyIncome = 12000

	score, factors := scorer.Score(app)
	for _, f := range factors {
		if f == "suspicious age distribution in family" {
			t.Errorf("age gap flagged with no adults present; score=%d factors=%v", score, factors)
		}
	}
}
