// Package rules provides the CEL-Go based screening rule engine.
package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/openwelfare/ubk/internal/domain"
)

// Engine compiles operator-defined screening rules and evaluates them
// against applications. Rules are supplemental to the built-in risk
// heuristics; an engine with no rules loaded contributes nothing.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScreeningRule
	Program cel.Program
}

// NewEngine creates a screening rule engine.
func NewEngine() (*Engine, error) {
	// CEL environment exposing application facts
	env, err := cel.NewEnv(
		cel.Variable("app", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("per_capita_income", cel.DoubleType),
		cel.Variable("declared_income", cel.DoubleType),
		cel.Variable("family_size", cel.IntType),
		cel.Variable("children_count", cel.IntType),
		cel.Variable("children_under16", cel.IntType),
		cel.Variable("documents_count", cel.IntType),
		cel.Variable("region", cel.StringType),
		cel.Variable("head_name", cel.StringType),
		cel.Variable("day_of_month", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating the loaded set.
func (e *Engine) ValidateRule(cfg *domain.ScreeningRule) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(configs []*domain.ScreeningRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces the loaded set atomically. A compile failure leaves
// the previously loaded rules in place.
func (e *Engine) ReloadRules(configs []*domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RemoveRule unloads a rule. Unknown ids are a no-op.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.compiledRules, id)
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Evaluate runs all loaded rules against one application. Results are
// ordered by rule id so risk factors come out deterministic. A rule whose
// expression errors at runtime reports the error and does not trigger.
func (e *Engine) Evaluate(app *domain.Application) []domain.ScreeningResult {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})

	activation := activationFor(app)

	results := make([]domain.ScreeningResult, 0, len(rules))
	for _, rule := range rules {
		result := domain.ScreeningResult{
			RuleID: rule.Config.ID,
			Weight: rule.Config.Weight,
			Reason: rule.Config.Reason,
		}

		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			result.Err = fmt.Sprintf("evaluation error: %v", err)
		} else {
			result.Triggered = triggered(out)
		}
		results = append(results, result)
	}
	return results
}

// activationFor flattens an application into CEL variables.
func activationFor(app *domain.Application) map[string]any {
	size := len(app.FamilyMembers)
	perCapita := 0.0
	if size > 0 {
		perCapita = float64(app.TotalMemberIncome()) / float64(size)
	}

	members := make([]map[string]any, 0, size)
	for _, m := range app.FamilyMembers {
		members = append(members, map[string]any{
			"name":     m.Name,
			"age":      m.Age,
			"relation": m.Relation,
			"income":   m.Income,
		})
	}

	return map[string]any{
		"app": map[string]any{
			"id":             app.ID,
			"family_head":    app.FamilyHead,
			"region":         app.RegionID,
			"children_count": app.ChildrenCount,
			"members":        members,
			"documents":      app.Documents,
		},
		"per_capita_income": perCapita,
		"declared_income":   float64(app.MonthlyIncome),
		"family_size":       size,
		"children_count":    app.ChildrenCount,
		"children_under16":  app.ChildrenUnder16(),
		"documents_count":   len(app.Documents),
		"region":            app.RegionID,
		"head_name":         app.FamilyHead,
		"day_of_month":      app.SubmissionDate.Day(),
	}
}

// triggered converts a CEL value: booleans directly, numbers when non-zero.
func triggered(val ref.Val) bool {
	switch v := val.(type) {
	case types.Bool:
		return bool(v)
	case types.Int:
		return v != 0
	case types.Double:
		return v != 0
	default:
		return false
	}
}

// Close clears the loaded rule set.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.ScreeningRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
