package policy

import (
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// Router orchestrates current bundle -> RuleEvaluator -> RoutingDecision.
// It is stateless per call (no shared mutable state between decisions) and
// safe for concurrent use across many worker goroutines, per spec.md §4.8's
// throughput requirement.
//
// Default policy (explicit, not implicit, per spec.md §4.8): no matching
// rule means routing_action=notify, required_authority=NONE. This mirrors
// original_source/alert-policy/engine/router.py's Router.route_alert,
// whose no-match branch returns the identical defaults.
type Router struct {
	loader    *BundleLoader
	evaluator *RuleEvaluator
	factory   *records.Factory
}

// NewRouter wires a BundleLoader and a RuleEvaluator already Compile()'d
// against the loader's current bundle.
func NewRouter(loader *BundleLoader, evaluator *RuleEvaluator, factory *records.Factory) *Router {
	return &Router{loader: loader, evaluator: evaluator, factory: factory}
}

// Route evaluates alert against the current bundle and returns a
// RoutingDecision. When a rule matches, routing_action is the rule's first
// allowed action (matching the original source's
// `matching_rule['allowed_actions'][0]` semantics) and required_authority
// is the rule's required_authority.
func (r *Router) Route(alert records.Alert) (records.RoutingDecision, error) {
	bundle, ok := r.loader.Current()
	if !ok {
		return records.RoutingDecision{}, rerrors.New(rerrors.PolicyRejection, "policy.Router.Route", "no policy bundle loaded", nil)
	}

	rule, err := r.evaluator.Evaluate(alert, bundle.Rules)
	if err != nil {
		return records.RoutingDecision{}, err
	}

	if rule == nil {
		return r.factory.NewRoutingDecision(alert.AlertID, "", records.ActionNotify, records.AuthorityNone, "default-policy")
	}

	if len(rule.AllowedActions) == 0 {
		return records.RoutingDecision{}, rerrors.New(rerrors.PolicyRejection, "policy.Router.Route",
			"matched rule "+rule.RuleID+" has no allowed_actions", nil)
	}

	return r.factory.NewRoutingDecision(
		alert.AlertID,
		rule.RuleID,
		records.RoutingAction(rule.AllowedActions[0]),
		rule.RequiredAuthority,
		rule.ExplanationTemplateID,
	)
}

// Replay recomputes a RoutingDecision deterministically for the validator's
// simulation check: same bundle + same alert must yield a byte-identical
// decision up to decision_id/decision_timestamp, which the caller supplies
// as inputs rather than letting Route mint fresh ones.
func (r *Router) Replay(alert records.Alert, decisionID, decisionTimestamp string) (records.RoutingDecision, error) {
	frozenFactory := &records.Factory{
		NewID: func() string { return decisionID },
		Now:   r.factory.Now,
	}
	replayRouter := &Router{loader: r.loader, evaluator: r.evaluator, factory: frozenFactory}
	decision, err := replayRouter.Route(alert)
	if err != nil {
		return records.RoutingDecision{}, err
	}
	decision.DecisionTimestamp = decisionTimestamp
	return decision, nil
}
