package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks a caller contract violation: nil application,
	// empty member list, negative age or income, blank id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownRegion marks a region id with no reference data. The engine
	// never silently defaults the coefficient; callers decide fallbacks.
	ErrUnknownRegion = errors.New("unknown region")
)

// CheckApplication verifies the engine's input preconditions. Validation
// findings (missing documents, count mismatches) are NOT errors; this only
// rejects structurally malformed records.
func CheckApplication(app *Application) error {
	if app == nil {
		return fmt.Errorf("%w: application is nil", ErrInvalidInput)
	}
	if app.ID == "" {
		return fmt.Errorf("%w: application id is required", ErrInvalidInput)
	}
	if len(app.FamilyMembers) == 0 {
		return fmt.Errorf("%w: family members list is empty", ErrInvalidInput)
	}
	for i, m := range app.FamilyMembers {
		if m.Age < 0 {
			return fmt.Errorf("%w: member %d has negative age", ErrInvalidInput, i)
		}
		if m.Income < 0 {
			return fmt.Errorf("%w: member %d has negative income", ErrInvalidInput, i)
		}
	}
	if app.MonthlyIncome < 0 {
		return fmt.Errorf("%w: declared monthly income is negative", ErrInvalidInput)
	}
	return nil
}
