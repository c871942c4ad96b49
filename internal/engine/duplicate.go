package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openwelfare/ubk/internal/domain"
)

// Similarity signal weights. Multiple signals co-trigger; the sum is
// compared against the policy's duplicate threshold.
const (
	weightSameHead     = 40
	weightSameSize     = 20
	weightSameRegion   = 20
	weightSimilarMoney = 15
	weightSimilarNames = 25
)

// DuplicateMatcher scores an application against a reference snapshot of
// previously submitted applications. The snapshot is always supplied by the
// caller; the matcher keeps no state of its own.
type DuplicateMatcher struct {
	policy *domain.Policy
}

// NewDuplicateMatcher creates a duplicate matcher with the given policy.
func NewDuplicateMatcher(policy *domain.Policy) *DuplicateMatcher {
	return &DuplicateMatcher{policy: policy}
}

// FindMatches returns reference applications whose accumulated similarity
// reaches the duplicate threshold, sorted by similarity descending.
// The application's own id is skipped.
func (m *DuplicateMatcher) FindMatches(app *domain.Application, refs []*domain.Application) []domain.DuplicateMatch {
	var matches []domain.DuplicateMatch

	for _, existing := range refs {
		if existing.ID == app.ID {
			continue
		}

		similarity := 0
		var reasons []string

		if strings.EqualFold(existing.FamilyHead, app.FamilyHead) {
			similarity += weightSameHead
			reasons = append(reasons, "identical family head name")
		}

		if len(existing.FamilyMembers) == len(app.FamilyMembers) {
			similarity += weightSameSize
			reasons = append(reasons, "same family size")
		}

		if existing.RegionID == app.RegionID && existing.ChildrenCount == app.ChildrenCount {
			similarity += weightSameRegion
			reasons = append(reasons, "same region and children count")
		}

		if m.incomesClose(existing.MonthlyIncome, app.MonthlyIncome) {
			similarity += weightSimilarMoney
			reasons = append(reasons, "very similar income levels")
		}

		if m.nameListRatio(existing.FamilyMembers, app.FamilyMembers) > m.policy.NameListRatio {
			similarity += weightSimilarNames
			reasons = append(reasons, "high family member name similarity")
		}

		if similarity >= m.policy.DuplicateThreshold {
			matches = append(matches, domain.DuplicateMatch{
				ID:         existing.ID,
				Similarity: similarity,
				Reason:     strings.Join(reasons, ", "),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}

// MatchReasons renders matches as audit reasons for the processing result.
func MatchReasons(matches []domain.DuplicateMatch) []string {
	reasons := make([]string, 0, len(matches))
	for _, m := range matches {
		reasons = append(reasons, fmt.Sprintf("similar to %s (score %d): %s", m.ID, m.Similarity, m.Reason))
	}
	return reasons
}

// incomesClose reports whether |a-b|/a is below the policy's relative
// difference. Cross-multiplied; a == 0 never matches any b, zero included.
func (m *DuplicateMatcher) incomesClose(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff*100 < a*int64(m.policy.IncomeDiffPct)
}

// nameListRatio is the count of member pairs across the two lists whose
// pairwise similarity exceeds the policy cutoff, over the smaller list's
// length. This is the historical all-pairs heuristic: one member may count
// toward several matches, so the ratio can exceed 1. Preserved as-is for
// compatibility with recorded decisions; see DESIGN.md for the open
// question on replacing it with a proper bipartite matching.
func (m *DuplicateMatcher) nameListRatio(list1, list2 []domain.FamilyMember) float64 {
	possible := len(list1)
	if len(list2) < possible {
		possible = len(list2)
	}
	if possible == 0 {
		return 0
	}

	matched := 0
	for _, m1 := range list1 {
		for _, m2 := range list2 {
			if stringSimilarity(m1.Name, m2.Name) > m.policy.PairSimilarity {
				matched++
			}
		}
	}
	return float64(matched) / float64(possible)
}

// stringSimilarity is 1 - editDistance/maxLen over the raw strings.
// Case-sensitive; no normalization.
func stringSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(editDistance(s1, s2))/float64(maxLen)
}

// editDistance is the classic Levenshtein distance with unit costs,
// computed over bytes with a two-row table.
func editDistance(s1, s2 string) int {
	prev := make([]int, len(s1)+1)
	curr := make([]int, len(s1)+1)

	for j := 0; j <= len(s1); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s2); i++ {
		curr[0] = i
		for j := 1; j <= len(s1); j++ {
			if s2[i-1] == s1[j-1] {
				curr[j] = prev[j-1]
			} else {
				curr[j] = min3(prev[j-1], curr[j-1], prev[j]) + 1
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(s1)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
