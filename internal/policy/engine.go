// Package policy implements the escalation policy engine. Policies are
// operator-defined CEL expressions evaluated against every completed
// assessment; a policy that evaluates to true raises an alert.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine holds the compiled policy set. Compilation happens once at
// load; evaluation is lock-free apart from a read lock on the set.
type Engine struct {
	logger *slog.Logger
	env    *cel.Env

	mu       sync.RWMutex
	programs []compiledPolicy
}

type compiledPolicy struct {
	policy  *domain.Policy
	program cel.Program
}

// NewEngine builds the CEL environment for assessment expressions.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("fraud_score", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("anomaly_score", cel.DoubleType),
		cel.Variable("classifier_probability", cel.DoubleType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("user_id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		logger: logger.With("component", "policy"),
		env:    env,
	}, nil
}

// Compile validates a single policy expression without loading it.
func (e *Engine) Compile(p *domain.Policy) error {
	_, err := e.compile(p)
	return err
}

func (e *Engine) compile(p *domain.Policy) (cel.Program, error) {
	ast, issues := e.env.Compile(p.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("policy %s: %w", p.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must return bool, got %s", p.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.ID, err)
	}
	return program, nil
}

// Load replaces the active policy set. Policies that fail to compile
// are skipped with a log entry rather than failing the whole load.
func (e *Engine) Load(policies []*domain.Policy) {
	compiled := make([]compiledPolicy, 0, len(policies))
	for _, p := range policies {
		program, err := e.compile(p)
		if err != nil {
			e.logger.Warn("skipping invalid policy", "policy_id", p.ID, "error", err)
			continue
		}
		compiled = append(compiled, compiledPolicy{policy: p, program: program})
	}

	e.mu.Lock()
	e.programs = compiled
	e.mu.Unlock()

	e.logger.Info("policies loaded", "count", len(compiled))
}

// Reload fetches the enabled policies from the repository and loads them.
func (e *Engine) Reload(ctx context.Context, repo domain.Repository) error {
	policies, err := repo.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to list policies: %w", err)
	}
	e.Load(policies)
	return nil
}

// Evaluate returns the policies triggered by an assessment, in load
// order. Evaluation errors disable the offending policy for that
// assessment only.
func (e *Engine) Evaluate(a *domain.FraudAssessment) []*domain.Policy {
	vars := map[string]any{
		"fraud_score":            a.FraudScore,
		"risk_level":             string(a.RiskLevel),
		"anomaly_score":          a.AnomalyScore,
		"classifier_probability": a.ClassifierProbability,
		"confidence":             a.Confidence,
		"amount":                 a.Amount,
		"currency":               a.Currency,
		"user_id":                a.UserID,
	}

	e.mu.RLock()
	programs := e.programs
	e.mu.RUnlock()

	var triggered []*domain.Policy
	for _, cp := range programs {
		out, _, err := cp.program.Eval(vars)
		if err != nil {
			e.logger.Warn("policy evaluation failed", "policy_id", cp.policy.ID, "error", err)
			continue
		}
		if matched, ok := out.Value().(bool); ok && matched {
			triggered = append(triggered, cp.policy)
		}
	}
	return triggered
}

// Count returns the number of active policies.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.programs)
}
