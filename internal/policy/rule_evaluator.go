package policy

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// bannedPredicateBuiltins bans CEL builtins whose result depends on
// wall-clock time or randomness, keeping rule evaluation pure and
// deterministic — the same alert against the same bundle always produces
// the same decision. Grounded on the "deterministic CEL profile" concept of
// banning now/random/uuid-style builtins before compilation.
var bannedPredicateBuiltins = regexp.MustCompile(`\b(now|timestamp|duration|random|uuid)\s*\(`)

// RuleEvaluator compiles each rule's match predicates into a CEL program at
// bundle-load time, then evaluates them per alert: all predicates in a rule
// must hold (pure AND) for the rule to match.
type RuleEvaluator struct {
	env      *cel.Env
	programs map[string][]cel.Program // rule_id -> compiled predicates
}

// NewRuleEvaluator builds the CEL environment exposing alert fields.
func NewRuleEvaluator() (*RuleEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("incident_id", cel.StringType),
		cel.Variable("policy_rule_id", cel.StringType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("risk_score_at_emit", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("policy: cel env construction failed: %w", err)
	}
	return &RuleEvaluator{env: env, programs: make(map[string][]cel.Program)}, nil
}

// Compile compiles every rule's match_predicates, rejecting any predicate
// that uses a banned non-deterministic builtin. Must be called once per
// loaded bundle before Evaluate.
func (re *RuleEvaluator) Compile(rules []records.Rule) error {
	compiled := make(map[string][]cel.Program, len(rules))
	for _, rule := range rules {
		progs := make([]cel.Program, 0, len(rule.MatchPredicates))
		for _, predicate := range rule.MatchPredicates {
			if bannedPredicateBuiltins.MatchString(predicate) {
				return rerrors.New(rerrors.PolicyRejection, "policy.RuleEvaluator.Compile",
					fmt.Sprintf("rule %s predicate uses a banned non-deterministic builtin: %s", rule.RuleID, predicate), nil)
			}
			ast, issues := re.env.Compile(predicate)
			if issues != nil && issues.Err() != nil {
				return rerrors.New(rerrors.InputRejected, "policy.RuleEvaluator.Compile",
					fmt.Sprintf("rule %s predicate %q: %v", rule.RuleID, predicate, issues.Err()), nil)
			}
			prg, err := re.env.Program(ast)
			if err != nil {
				return rerrors.New(rerrors.InputRejected, "policy.RuleEvaluator.Compile",
					fmt.Sprintf("rule %s predicate %q", rule.RuleID, predicate), err)
			}
			progs = append(progs, prg)
		}
		compiled[rule.RuleID] = progs
	}
	re.programs = compiled
	return nil
}

// Evaluate returns the first rule (by descending priority; ties are
// impossible by the bundle's priority-uniqueness invariant) whose compiled
// predicates all evaluate true against alert. Returns (nil, nil) if no rule
// matches.
func (re *RuleEvaluator) Evaluate(alert records.Alert, rules []records.Rule) (*records.Rule, error) {
	ordered := make([]records.Rule, len(rules))
	copy(ordered, rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	input := map[string]interface{}{
		"incident_id":        alert.IncidentID,
		"policy_rule_id":     alert.PolicyRuleID,
		"severity":           alert.Severity,
		"risk_score_at_emit": alert.RiskScoreAtEmit,
	}

	for i := range ordered {
		rule := ordered[i]
		progs, ok := re.programs[rule.RuleID]
		if !ok {
			return nil, rerrors.New(rerrors.InputRejected, "policy.RuleEvaluator.Evaluate",
				"rule "+rule.RuleID+" was not compiled", nil)
		}
		if allPredicatesHold(progs, input) {
			return &ordered[i], nil
		}
	}
	return nil, nil
}

func allPredicatesHold(progs []cel.Program, input map[string]interface{}) bool {
	for _, prg := range progs {
		out, _, err := prg.Eval(input)
		if err != nil {
			return false
		}
		if b, ok := asBool(out); !ok || !b {
			return false
		}
	}
	return true
}

func asBool(v ref.Val) (bool, bool) {
	b, ok := v.(types.Bool)
	if !ok {
		return false, false
	}
	return bool(b), true
}
