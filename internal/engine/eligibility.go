// Package engine implements the automated decision engine: eligibility,
// benefit calculation, risk scoring, duplicate detection, and the
// orchestrator that combines them into one recommended action.
package engine

import (
	"fmt"

	"github.com/openwelfare/ubk/internal/domain"
)

// EligibilityRule decides binary eligibility and checks structural
// completeness of an application. Pure; no state beyond the policy.
type EligibilityRule struct {
	policy *domain.Policy
}

// NewEligibilityRule creates an eligibility rule with the given policy.
func NewEligibilityRule(policy *domain.Policy) *EligibilityRule {
	return &EligibilityRule{policy: policy}
}

// Eligible reports whether the household qualifies for the benefit:
// at least one child under 16, and per-capita income strictly below the
// GMD threshold. The child check runs first; households without eligible
// children are out regardless of income.
func (r *EligibilityRule) Eligible(app *domain.Application) bool {
	if app.ChildrenUnder16() == 0 {
		return false
	}

	// total/size < GMD, compared without division so the boundary is exact:
	// income equal to the threshold is NOT eligible.
	total := app.TotalMemberIncome()
	size := int64(len(app.FamilyMembers))
	return total < r.policy.GMDThreshold*size
}

// Validate checks three independent completeness conditions and accumulates
// a finding for each failure. Findings are not errors and do not affect
// eligibility; the orchestrator routes applications with findings to manual
// review.
func (r *EligibilityRule) Validate(app *domain.Application) (bool, []string) {
	var issues []string

	for _, doc := range r.policy.RequiredDocuments {
		if !app.HasDocument(doc) {
			issues = append(issues, fmt.Sprintf("missing required document: %s", doc))
		}
	}

	if app.ChildrenUnder16() != app.ChildrenCount {
		issues = append(issues, "children count mismatch with family composition")
	}

	if app.TotalMemberIncome() != app.MonthlyIncome {
		issues = append(issues, "income declaration inconsistency")
	}

	return len(issues) == 0, issues
}
