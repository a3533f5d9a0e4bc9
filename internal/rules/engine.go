// Package rules provides the CEL-Go based indicator rule engine.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// Engine compiles indicator rules once and evaluates them against ingested
// transactions. Evaluation is read-only and safe for concurrent use;
// LoadRule and ReloadRules swap the compiled set under the write lock.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*CompiledRule

	velocityGetter VelocityGetter
	maxWorkers     int
}

// CompiledRule holds a pre-compiled CEL program together with its source
// rule.
type CompiledRule struct {
	Rule    *domain.IndicatorRule
	Program cel.Program
}

// VelocityGetter returns the entity's transaction count within a trailing
// time window, for rules that reference velocity_count.
type VelocityGetter func(ctx context.Context, entityID string, windowSecs int) (int64, error)

// NewEngine creates a rule engine with the transaction variable
// environment.
func NewEngine(velocityGetter VelocityGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("source_id", cel.StringType),
		cel.Variable("dest_id", cel.StringType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("velocity_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:            env,
		compiled:       make(map[string]*CompiledRule),
		velocityGetter: velocityGetter,
		maxWorkers:     maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.IndicatorRule) error {
	if rule == nil {
		return fmt.Errorf("rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a single rule.
func (e *Engine) LoadRule(rule *domain.IndicatorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}
	e.compiled[rule.ID] = compiled
	return nil
}

// ReloadRules atomically replaces the loaded set with the enabled rules
// from the given list. This backs hot-reloading from the store.
func (e *Engine) ReloadRules(rules []*domain.IndicatorRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		next[rule.ID] = compiled
	}

	e.compiled = next
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the currently loaded rules.
func (e *Engine) LoadedRules() []*domain.IndicatorRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.IndicatorRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		out = append(out, c.Rule)
	}
	return out
}

// EvaluateInput is the transaction view exposed to rule expressions.
type EvaluateInput struct {
	TxID           string
	Type           string
	SourceID       string
	DestID         string
	Amount         float64
	Currency       string
	Channel        string
	VelocityWindow int // seconds; 0 disables velocity lookup
}

// Evaluate runs every loaded rule against the transaction and returns the
// indicator hits for rules that fired. A rule fires when its expression
// yields true or a positive number; the numeric result scaled by the rule
// weight becomes the hit score.
func (e *Engine) Evaluate(ctx context.Context, input *EvaluateInput) ([]domain.IndicatorHit, error) {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiled))
	for _, c := range e.compiled {
		loaded = append(loaded, c)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 {
		return nil, nil
	}

	var velocityCount int64
	if e.velocityGetter != nil && input.VelocityWindow > 0 {
		count, err := e.velocityGetter(ctx, input.SourceID, input.VelocityWindow)
		if err == nil {
			velocityCount = count
		}
	}

	activation := map[string]any{
		"tx": map[string]any{
			"id":        input.TxID,
			"type":      input.Type,
			"source_id": input.SourceID,
			"dest_id":   input.DestID,
			"amount":    input.Amount,
			"currency":  input.Currency,
			"channel":   input.Channel,
		},
		"amount":         input.Amount,
		"currency":       input.Currency,
		"source_id":      input.SourceID,
		"dest_id":        input.DestID,
		"tx_type":        input.Type,
		"channel":        input.Channel,
		"velocity_count": velocityCount,
	}

	hits := make([]domain.IndicatorHit, len(loaded))
	fired := make([]bool, len(loaded))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range loaded {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			hit, ok := e.evaluateRule(r, activation, input.TxID)
			hits[idx] = hit
			fired[idx] = ok
		}(i, rule)
	}
	wg.Wait()

	out := make([]domain.IndicatorHit, 0, len(loaded))
	for i, hit := range hits {
		if fired[i] {
			out = append(out, hit)
		}
	}
	return out, nil
}

func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, txID string) (domain.IndicatorHit, bool) {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		// A failing rule never blocks ingestion; it just doesn't fire.
		return domain.IndicatorHit{}, false
	}

	score := toScore(out)
	if score <= 0 {
		return domain.IndicatorHit{}, false
	}

	weight := rule.Rule.Weight
	if weight == 0 {
		weight = 1
	}

	return domain.IndicatorHit{
		RuleID:        rule.Rule.ID,
		Indicator:     rule.Rule.Indicator,
		TransactionID: txID,
		Score:         score * weight,
		Reason:        rule.Rule.Name,
	}, true
}

// toScore converts a CEL result to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// Close clears the loaded rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.IndicatorRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}
