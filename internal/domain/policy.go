package domain

// RiskWeights holds the additive weight each fraud heuristic contributes
// when its condition holds. The raw sum can exceed 100; the scorer caps
// the final score at 100.
type RiskWeights struct {
	VeryLowIncome     int `json:"veryLowIncome"`     // per-capita < 30% of GMD
	NearThreshold     int `json:"nearThreshold"`     // per-capita in (90%, 100%) of GMD
	LargeFamily       int `json:"largeFamily"`       // more than LargeFamilySize members
	NoWorkingAdults   int `json:"noWorkingAdults"`   // >3 children under 16, no adult with income
	LateSubmission    int `json:"lateSubmission"`    // day of month past the cutoff
	HighRiskRegion    int `json:"highRiskRegion"`    // region in the high-incidence set
	AgeGapAnomaly     int `json:"ageGapAnomaly"`     // parent/child gap under MinParentChildGap
}

// Policy holds every program parameter the engine decides with. Benefit
// rules change each fiscal year, so nothing here is hard-coded in the
// engine itself; DefaultPolicy documents the current program values.
type Policy struct {
	// Eligibility and benefit parameters.
	GMDThreshold      int64   `json:"gmdThreshold"`      // soms per person per month
	BasePerChild      int64   `json:"basePerChild"`      // soms per child under 16
	BorderUpliftPct   int     `json:"borderUpliftPct"`   // extra percent applied to border regions
	SupervisorCeiling int64   `json:"supervisorCeiling"` // benefit above this needs supervisor approval
	RequiredDocuments []string `json:"requiredDocuments"`

	// Risk scoring parameters.
	Weights            RiskWeights `json:"weights"`
	LargeFamilySize    int         `json:"largeFamilySize"`
	ManyChildrenCount  int         `json:"manyChildrenCount"`
	LateSubmissionDay  int         `json:"lateSubmissionDay"`
	MinParentChildGap  int         `json:"minParentChildGap"` // years
	HighRiskRegions    []string    `json:"highRiskRegions"`
	HighRiskThreshold  int         `json:"highRiskThreshold"`
	MediumRiskThreshold int        `json:"mediumRiskThreshold"`

	// Duplicate detection parameters.
	DuplicateThreshold  int     `json:"duplicateThreshold"`  // match reported at or above this
	PairSimilarity      float64 `json:"pairSimilarity"`      // per-name Levenshtein ratio cutoff
	NameListRatio       float64 `json:"nameListRatio"`       // member-list match ratio cutoff
	IncomeDiffPct       int     `json:"incomeDiffPct"`       // relative income difference percent
}

// DefaultPolicy returns the current program parameters.
func DefaultPolicy() *Policy {
	return &Policy{
		GMDThreshold:      6000,
		BasePerChild:      1200,
		BorderUpliftPct:   20,
		SupervisorCeiling: 5000,
		RequiredDocuments: []string{
			"birth_certificates",
			"income_declaration",
			"residence_certificate",
		},
		Weights: RiskWeights{
			VeryLowIncome:   25,
			NearThreshold:   15,
			LargeFamily:     20,
			NoWorkingAdults: 30,
			LateSubmission:  10,
			HighRiskRegion:  10,
			AgeGapAnomaly:   15,
		},
		LargeFamilySize:     8,
		ManyChildrenCount:   3,
		LateSubmissionDay:   25,
		MinParentChildGap:   16,
		HighRiskRegions:     []string{"batken", "osh"},
		HighRiskThreshold:   70,
		MediumRiskThreshold: 40,
		DuplicateThreshold:  60,
		PairSimilarity:      0.8,
		NameListRatio:       0.7,
		IncomeDiffPct:       10,
	}
}

// IsHighRiskRegion reports whether a region id is in the high-incidence set.
func (p *Policy) IsHighRiskRegion(regionID string) bool {
	for _, r := range p.HighRiskRegions {
		if r == regionID {
			return true
		}
	}
	return false
}
