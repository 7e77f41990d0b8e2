// Package dedup implements the Deduplicator and Suppressor from spec.md
// §4.11: content-hash deduplication of alerts, with a pluggable seen-set
// backend, and reason-coded suppression records when the Router's decision
// is to suppress.
package dedup

import (
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// Backend is the pluggable seen-set behind the Deduplicator. The in-process
// map backend (impl_inmem) is the default/required backend, rehydrated from
// the ledger on startup; impl_redis is an optional backend for deployments
// that run the Router across multiple worker processes sharing one dedup
// horizon.
type Backend interface {
	// SeenAndMark atomically checks whether key has been seen before and,
	// regardless of the answer, marks it seen for subsequent calls. This
	// single atomic operation is what keeps is_duplicate pure and
	// race-free under concurrent callers.
	SeenAndMark(key string) (alreadySeen bool, err error)
}

// DedupKeyFields is the exact field subset spec.md §4.11 hashes over.
type DedupKeyFields struct {
	IncidentID      string  `json:"incident_id"`
	PolicyRuleID    string  `json:"policy_rule_id"`
	Severity        string  `json:"severity"`
	RiskScoreAtEmit float64 `json:"risk_score_at_emit"`
}

// Key computes SHA256(canonical({incident_id, policy_rule_id, severity,
// risk_score_at_emit})) for an alert.
func Key(a records.Alert) (string, error) {
	return canon.Hash(DedupKeyFields{
		IncidentID:      a.IncidentID,
		PolicyRuleID:    a.PolicyRuleID,
		Severity:        a.Severity,
		RiskScoreAtEmit: a.RiskScoreAtEmit,
	})
}

// Deduplicator is a pure function over a seen-set held for its lifetime.
// Callers may persist and rehydrate the set from the ledger, per spec.md
// §4.11.
type Deduplicator struct {
	backend Backend
}

// NewDeduplicator wires a Backend.
func NewDeduplicator(backend Backend) *Deduplicator {
	return &Deduplicator{backend: backend}
}

// IsDuplicate reports whether an alert with the identical dedup key has
// already been observed by this Deduplicator, then marks the key as seen.
// Per spec.md §8: submitting the same alert twice in succession returns
// false then true.
func (d *Deduplicator) IsDuplicate(a records.Alert) (bool, error) {
	key, err := Key(a)
	if err != nil {
		return false, rerrors.New(rerrors.InputRejected, "dedup.IsDuplicate", a.AlertID, err)
	}
	seen, err := d.backend.SeenAndMark(key)
	if err != nil {
		return false, rerrors.New(rerrors.IOFailure, "dedup.IsDuplicate", a.AlertID, err)
	}
	return seen, nil
}

// PreviousAlertHash mirrors original_source's
// alert-engine/engine/deduplicator.py Deduplicator.get_previous_alert_hash:
// given an incident's alerts sorted by emitted_at, returns the
// second-to-last alert's immutable_hash, or ZeroHash if fewer than two
// alerts exist.
func PreviousAlertHash(incidentAlertsByEmittedAt []records.Alert) string {
	if len(incidentAlertsByEmittedAt) < 2 {
		return records.ZeroHash
	}
	return incidentAlertsByEmittedAt[len(incidentAlertsByEmittedAt)-2].ImmutableHash
}
