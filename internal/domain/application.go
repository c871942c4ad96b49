// Package domain defines the core interfaces and types for the UBK engine.
package domain

import (
	"time"
)

// FamilyMember is one member of an applicant household.
type FamilyMember struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Relation string `json:"relation"` // e.g. "mother", "child"
	Income   int64  `json:"income"`   // monthly, in soms
}

// Application is a household benefit application as submitted to the engine.
// The engine treats it as read-only; ownership stays with the case store.
type Application struct {
	ID             string         `json:"id"`
	FamilyHead     string         `json:"familyHead"`
	RegionID       string         `json:"regionId"`
	ChildrenCount  int            `json:"childrenCount"`
	FamilyMembers  []FamilyMember `json:"familyMembers"`
	MonthlyIncome  int64          `json:"monthlyIncome"` // declared total, in soms
	Documents      []string       `json:"documents"`     // document-type tags present
	SubmissionDate time.Time      `json:"submissionDate"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ChildrenUnder16 counts members younger than 16.
func (a *Application) ChildrenUnder16() int {
	n := 0
	for _, m := range a.FamilyMembers {
		if m.Age < 16 {
			n++
		}
	}
	return n
}

// TotalMemberIncome sums the declared income of all members.
func (a *Application) TotalMemberIncome() int64 {
	var total int64
	for _, m := range a.FamilyMembers {
		total += m.Income
	}
	return total
}

// HasDocument reports whether a document tag is present.
func (a *Application) HasDocument(tag string) bool {
	for _, d := range a.Documents {
		if d == tag {
			return true
		}
	}
	return false
}

// ApplicationRequest is the API request payload for submitting an application.
type ApplicationRequest struct {
	ID             string         `json:"id,omitempty"`
	FamilyHead     string         `json:"familyHead"`
	RegionID       string         `json:"regionId"`
	ChildrenCount  int            `json:"childrenCount"`
	FamilyMembers  []FamilyMember `json:"familyMembers"`
	MonthlyIncome  int64          `json:"monthlyIncome"`
	Documents      []string       `json:"documents"`
	SubmissionDate string         `json:"submissionDate,omitempty"` // YYYY-MM-DD, defaults to today
}

// ToApplication converts a request to an Application domain object.
func (r *ApplicationRequest) ToApplication() *Application {
	submitted := time.Now().UTC()
	if r.SubmissionDate != "" {
		if d, err := time.Parse("2006-01-02", r.SubmissionDate); err == nil {
			submitted = d
		}
	}
	return &Application{
		ID:             r.ID,
		FamilyHead:     r.FamilyHead,
		RegionID:       r.RegionID,
		ChildrenCount:  r.ChildrenCount,
		FamilyMembers:  r.FamilyMembers,
		MonthlyIncome:  r.MonthlyIncome,
		Documents:      r.Documents,
		SubmissionDate: submitted,
		CreatedAt:      time.Now().UTC(),
	}
}
