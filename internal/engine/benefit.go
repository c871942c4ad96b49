package engine

import (
	"math"

	"github.com/openwelfare/ubk/internal/domain"
)

// BenefitCalculator computes the monthly benefit amount for an application
// in a given region. It does not check eligibility; callers gate it on
// EligibilityRule.Eligible.
type BenefitCalculator struct {
	policy *domain.Policy
}

// NewBenefitCalculator creates a benefit calculator with the given policy.
func NewBenefitCalculator(policy *domain.Policy) *BenefitCalculator {
	return &BenefitCalculator{policy: policy}
}

// Calculate returns the monthly benefit in whole soms, rounded half-up.
//
//	base     = basePerChild x childrenUnder16
//	adjusted = base x coefficient          (x 1.20 extra for border regions)
//	total    = adjusted + borderBonus x childrenUnder16 (border only)
//
// The arithmetic runs on integer numerator/denominator pairs, with the
// coefficient carried in hundredths, so results are bit-for-bit reproducible.
func (c *BenefitCalculator) Calculate(app *domain.Application, region *domain.Region) int64 {
	children := int64(app.ChildrenUnder16())
	if children == 0 {
		return 0
	}

	base := c.policy.BasePerChild * children
	coef := int64(math.Round(region.Coefficient * 100))

	num := base * coef
	den := int64(100)

	var bonus int64
	if region.Type == domain.RegionBorder {
		uplift := int64(100 + c.policy.BorderUpliftPct)
		num = base * coef * uplift
		den = 100 * 100
		bonus = region.BorderBonus * children
	}

	return roundHalfUp(num, den) + bonus
}

// roundHalfUp divides num by den rounding halves away from zero.
// Both arguments are non-negative.
func roundHalfUp(num, den int64) int64 {
	return (num + den/2) / den
}
