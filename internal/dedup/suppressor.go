package dedup

import (
	"github.com/ransomeye/core/pkg/records"
)

// Suppressor emits explicit, reason-coded suppression records when the
// Router's decision is to suppress, mirroring
// original_source/alert-engine/engine/suppressor.py's should_suppress /
// create_suppression split.
type Suppressor struct {
	factory *records.Factory
}

// NewSuppressor wires a RecordFactory.
func NewSuppressor(factory *records.Factory) *Suppressor {
	return &Suppressor{factory: factory}
}

// ShouldSuppress reports whether decision's routing_action is "suppress".
func (s *Suppressor) ShouldSuppress(decision records.RoutingDecision) bool {
	return decision.RoutingAction == records.ActionSuppress
}

// Suppress builds a SuppressionRecord for the given alert/decision pair.
// Callers are responsible for persisting it and appending the
// corresponding ledger entry, same as any other domain record.
func (s *Suppressor) Suppress(alert records.Alert, decision records.RoutingDecision, reason, suppressedBy string) (records.SuppressionRecord, error) {
	return s.factory.NewSuppressionRecord(alert.AlertID, decision.RuleID, reason, suppressedBy)
}
