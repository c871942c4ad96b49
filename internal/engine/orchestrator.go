package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openwelfare/ubk/internal/domain"
)

// RegionSource resolves region reference data by id.
// Unknown ids return domain.ErrUnknownRegion.
type RegionSource interface {
	Region(ctx context.Context, id string) (*domain.Region, error)
}

// Screener evaluates supplemental screening rules against an application.
// Implemented by the rules package; optional.
type Screener interface {
	Evaluate(app *domain.Application) []domain.ScreeningResult
}

// Orchestrator combines eligibility, benefit calculation, risk scoring and
// duplicate detection into a single recommended action per application.
type Orchestrator struct {
	policy      *domain.Policy
	eligibility *EligibilityRule
	calculator  *BenefitCalculator
	scorer      *RiskScorer
	matcher     *DuplicateMatcher
	regions     RegionSource
	refs        *ReferenceStore
	screener    Screener
	maxWorkers  int
}

// NewOrchestrator creates an orchestrator over the given policy, region
// source and reference store.
func NewOrchestrator(policy *domain.Policy, regions RegionSource, refs *ReferenceStore) *Orchestrator {
	if policy == nil {
		policy = domain.DefaultPolicy()
	}
	if refs == nil {
		refs = NewReferenceStore()
	}
	return &Orchestrator{
		policy:      policy,
		eligibility: NewEligibilityRule(policy),
		calculator:  NewBenefitCalculator(policy),
		scorer:      NewRiskScorer(policy),
		matcher:     NewDuplicateMatcher(policy),
		regions:     regions,
		refs:        refs,
		maxWorkers:  10,
	}
}

// SetScreener attaches a supplemental screening-rule evaluator.
func (o *Orchestrator) SetScreener(s Screener) { o.screener = s }

// SetMaxWorkers bounds batch evaluation concurrency.
func (o *Orchestrator) SetMaxWorkers(n int) {
	if n > 0 {
		o.maxWorkers = n
	}
}

// References exposes the reference store for snapshot reloads.
func (o *Orchestrator) References() *ReferenceStore { return o.refs }

// Evaluate runs the full decision pipeline over one application with an
// explicit region and reference snapshot. Pure apart from the generated
// result id and timestamp. Components 1-4 see only the input application;
// precedence between their outcomes is applied at the end, first match wins.
func (o *Orchestrator) Evaluate(app *domain.Application, region *domain.Region, refs []*domain.Application) (*domain.ProcessingResult, error) {
	if err := domain.CheckApplication(app); err != nil {
		return nil, err
	}
	if region == nil {
		return nil, domain.ErrUnknownRegion
	}

	eligible := o.eligibility.Eligible(app)
	valid, issues := o.eligibility.Validate(app)
	score, factors := o.scorer.Score(app)
	matches := o.matcher.FindMatches(app, refs)

	if o.screener != nil {
		for _, r := range o.screener.Evaluate(app) {
			if r.Triggered {
				score += r.Weight
				factors = append(factors, r.Reason)
			}
		}
		if score > 100 {
			score = 100
		}
	}
	level := o.scorer.Level(score)

	// The amount the application would receive if approved is always
	// carried on the result, whatever branch fires.
	var amount int64
	if eligible {
		amount = o.calculator.Calculate(app, region)
	}

	action, reasons := o.decide(eligible, valid, issues, matches, level, factors, amount)

	return &domain.ProcessingResult{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		Eligible:      eligible,
		RiskScore:     score,
		RiskLevel:     level,
		BenefitAmount: amount,
		Action:        action,
		Reasons:       reasons,
		DuplicateRisk: len(matches) > 0,
		Matches:       matches,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// decide applies the fixed precedence. Later branches assume earlier ones
// did not match, so the order here is load-bearing.
func (o *Orchestrator) decide(eligible, valid bool, issues []string, matches []domain.DuplicateMatch, level string, factors []string, amount int64) (string, []string) {
	switch {
	case !eligible:
		return domain.ActionReject,
			[]string{"does not meet eligibility criteria"}

	case !valid:
		return domain.ActionReviewRequired,
			append([]string{"application validation issues found"}, issues...)

	case len(matches) > 0:
		return domain.ActionReviewRequired,
			append([]string{"potential duplicate application detected"}, MatchReasons(matches)...)

	case level == domain.RiskHigh:
		return domain.ActionFieldInspection,
			append([]string{"high fraud risk detected"}, factors...)

	case level == domain.RiskMedium:
		return domain.ActionReviewRequired,
			append([]string{"medium risk level requires manual review"}, factors...)

	case amount > o.policy.SupervisorCeiling:
		return domain.ActionReviewRequired,
			[]string{"high benefit amount requires supervisor approval"}

	default:
		return domain.ActionAutoApprove,
			[]string{"all automated checks passed"}
	}
}

// Process evaluates one application against the current reference snapshot,
// resolving its region through the region source.
func (o *Orchestrator) Process(ctx context.Context, app *domain.Application) (*domain.ProcessingResult, error) {
	if err := domain.CheckApplication(app); err != nil {
		return nil, err
	}
	region, err := o.regions.Region(ctx, app.RegionID)
	if err != nil {
		return nil, err
	}
	return o.Evaluate(app, region, o.refs.Snapshot())
}

// Batch evaluates a set of applications against a snapshot built from the
// batch itself. The snapshot is published before any worker starts; workers
// then run independently, bounded by the semaphore, since no application's
// verdict depends on another's.
func (o *Orchestrator) Batch(ctx context.Context, apps []*domain.Application) (map[string]*domain.ProcessingResult, error) {
	for _, app := range apps {
		if err := domain.CheckApplication(app); err != nil {
			return nil, err
		}
	}

	o.refs.Replace(apps)
	snapshot := o.refs.Snapshot()

	results := make([]*domain.ProcessingResult, len(apps))
	errs := make([]error, len(apps))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.maxWorkers)

	for i, app := range apps {
		wg.Add(1)
		go func(idx int, a *domain.Application) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			region, err := o.regions.Region(ctx, a.RegionID)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx], errs[idx] = o.Evaluate(a, region, snapshot)
		}(i, app)
	}

	wg.Wait()

	out := make(map[string]*domain.ProcessingResult, len(apps))
	for i, app := range apps {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out[app.ID] = results[i]
	}
	return out, nil
}

// Summarize aggregates results into processing statistics. Pure reduction.
func Summarize(results map[string]*domain.ProcessingResult) domain.ProcessingStats {
	stats := domain.ProcessingStats{Total: len(results)}

	var totalRisk int64
	for _, r := range results {
		switch r.Action {
		case domain.ActionAutoApprove:
			stats.AutoApproved++
		case domain.ActionReviewRequired:
			stats.ReviewRequired++
		case domain.ActionFieldInspection:
			stats.FieldInspection++
		case domain.ActionReject:
			stats.Rejected++
		}

		switch r.RiskLevel {
		case domain.RiskLow:
			stats.LowRisk++
		case domain.RiskMedium:
			stats.MediumRisk++
		case domain.RiskHigh:
			stats.HighRisk++
		}

		if r.DuplicateRisk {
			stats.DuplicatesDetected++
		}
		totalRisk += int64(r.RiskScore)
		stats.TotalBenefitAmount += r.BenefitAmount
	}

	if stats.Total > 0 {
		stats.AverageRiskScore = int(roundHalfUp(totalRisk, int64(stats.Total)))
	}
	return stats
}
