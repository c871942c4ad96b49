package domain

// ScreeningRule is a supplemental, operator-defined risk rule. The built-in
// heuristics cover the program's standing fraud patterns; screening rules let
// case supervisors add CEL conditions for emerging patterns without a
// release. A triggered rule adds its weight to the risk score, subject to
// the same 100 cap.
type ScreeningRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expression is a CEL expression over application facts. Must evaluate
	// to bool (triggered or not) or to a non-zero number (triggered).
	Expression string `json:"expression"`

	// Weight added to the risk score when the rule triggers.
	Weight int `json:"weight"`

	// Reason reported as a risk factor when the rule triggers.
	Reason string `json:"reason"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// ScreeningResult is the outcome of one screening rule evaluation.
type ScreeningResult struct {
	RuleID    string `json:"ruleId"`
	Triggered bool   `json:"triggered"`
	Weight    int    `json:"weight"`
	Reason    string `json:"reason"`
	Err       string `json:"err,omitempty"`
}
