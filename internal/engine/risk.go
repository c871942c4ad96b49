package engine

import (
	"github.com/openwelfare/ubk/internal/domain"
)

// RiskScorer computes a 0-100 fraud-risk score from a fixed set of weighted
// heuristics. Every check runs; every triggered factor is reported. Purely
// a function of the input application.
type RiskScorer struct {
	policy *domain.Policy
}

// NewRiskScorer creates a risk scorer with the given policy.
func NewRiskScorer(policy *domain.Policy) *RiskScorer {
	return &RiskScorer{policy: policy}
}

// Score returns the capped risk score and the list of triggered factors.
func (s *RiskScorer) Score(app *domain.Application) (int, []string) {
	score := 0
	var factors []string

	w := s.policy.Weights
	gmd := s.policy.GMDThreshold
	total := app.TotalMemberIncome()
	size := int64(len(app.FamilyMembers))

	// Suspiciously low income (possible underreporting).
	// per-capita < 30% of GMD, cross-multiplied: total*10 < gmd*3*size
	if total*10 < gmd*3*size {
		score += w.VeryLowIncome
		factors = append(factors, "extremely low declared income")
	}

	// Income just below the cutoff (potential manipulation).
	// 90% of GMD < per-capita < GMD
	if total*10 > gmd*9*size && total < gmd*size {
		score += w.NearThreshold
		factors = append(factors, "income suspiciously close to threshold")
	}

	if len(app.FamilyMembers) > s.policy.LargeFamilySize {
		score += w.LargeFamily
		factors = append(factors, "unusually large family size")
	}

	if app.ChildrenUnder16() > s.policy.ManyChildrenCount && !hasWorkingAdult(app.FamilyMembers) {
		score += w.NoWorkingAdults
		factors = append(factors, "multiple children with no working adults")
	}

	if app.SubmissionDate.Day() > s.policy.LateSubmissionDay {
		score += w.LateSubmission
		factors = append(factors, "end-of-month submission pattern")
	}

	if s.policy.IsHighRiskRegion(app.RegionID) {
		score += w.HighRiskRegion
		factors = append(factors, "high-risk geographic region")
	}

	if s.ageGapAnomaly(app.FamilyMembers) {
		score += w.AgeGapAnomaly
		factors = append(factors, "suspicious age distribution in family")
	}

	if score > 100 {
		score = 100
	}
	return score, factors
}

// Level maps a score to its risk tier.
func (s *RiskScorer) Level(score int) string {
	switch {
	case score >= s.policy.HighRiskThreshold:
		return domain.RiskHigh
	case score >= s.policy.MediumRiskThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// ageGapAnomaly flags households where the gap between the oldest adult
// (age >= 18) and the oldest minor (age < 18) is below the minimum
// plausible parent/child gap. Empty groups raise nothing.
func (s *RiskScorer) ageGapAnomaly(members []domain.FamilyMember) bool {
	oldestAdult, oldestChild := -1, -1
	for _, m := range members {
		if m.Age >= 18 {
			if m.Age > oldestAdult {
				oldestAdult = m.Age
			}
		} else if m.Age > oldestChild {
			oldestChild = m.Age
		}
	}
	if oldestAdult < 0 || oldestChild < 0 {
		return false
	}
	return oldestAdult-oldestChild < s.policy.MinParentChildGap
}

func hasWorkingAdult(members []domain.FamilyMember) bool {
	for _, m := range members {
		if m.Age >= 18 && m.Income > 0 {
			return true
		}
	}
	return false
}
