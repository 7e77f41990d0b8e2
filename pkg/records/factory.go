package records

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/rerrors"
)

// IDSource produces fresh UUIDv4 strings. Tests supply a deterministic
// source; production uses DefaultIDSource.
type IDSource func() string

// DefaultIDSource generates a real random UUIDv4.
func DefaultIDSource() string { return uuid.NewString() }

// Clock produces the current instant. Tests supply a fixed clock;
// production uses DefaultClock.
type Clock func() time.Time

// DefaultClock returns the real wall-clock time.
func DefaultClock() time.Time { return time.Now() }

// rfc3339UTC renders t as RFC 3339 in UTC with a trailing Z.
func rfc3339UTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

// Factory builds every record kind with an injected id source and clock so
// construction is deterministic and testable.
type Factory struct {
	NewID IDSource
	Now   Clock
}

// NewFactory wires the default production id source and clock.
func NewFactory() *Factory {
	return &Factory{NewID: DefaultIDSource, Now: DefaultClock}
}

func (f *Factory) now() string { return rfc3339UTC(f.Now()) }

// immutableHash computes sha256(canonical(v without {immutable_hash,
// ledger_entry_id})).
func immutableHash(v interface{}) (string, error) {
	return canon.HashExcluding(v, excludedFromHash...)
}

// NewAlert builds an Alert, computing prev_alert_hash from the given
// ordered prior-alerts-in-incident slice (caller supplies it, already
// sorted by emitted_at, per spec.md §4.5's "immediately prior alert in the
// same incident_id ordered by emitted_at").
func (f *Factory) NewAlert(incidentID, policyRuleID, severity string, riskScore float64, priorInIncident []Alert) (Alert, error) {
	if incidentID == "" || policyRuleID == "" || severity == "" {
		return Alert{}, rerrors.New(rerrors.InputRejected, "records.NewAlert", "missing required field", nil)
	}
	prevHash := ZeroHash
	if len(priorInIncident) > 0 {
		last := priorInIncident[len(priorInIncident)-1]
		if last.ImmutableHash == "" {
			return Alert{}, rerrors.New(rerrors.InputRejected, "records.NewAlert", "prior alert missing immutable_hash", nil)
		}
		prevHash = last.ImmutableHash
	}
	a := Alert{
		AlertID:         f.NewID(),
		IncidentID:      incidentID,
		PolicyRuleID:    policyRuleID,
		Severity:        severity,
		RiskScoreAtEmit: riskScore,
		EmittedAt:       f.now(),
		PrevAlertHash:   prevHash,
	}
	h, err := immutableHash(a)
	if err != nil {
		return Alert{}, rerrors.New(rerrors.InputRejected, "records.NewAlert", "hash computation failed", err)
	}
	a.ImmutableHash = h
	return a, nil
}

// NewLedgerEntry builds the next LedgerEntry atop the prior entry (nil for
// the genesis entry). It does not sign; signing happens in
// internal/ledger.AuditLedger, which owns the signer.
func (f *Factory) NewLedgerEntry(prev *LedgerEntry, recordKind, recordRef string) (LedgerEntry, error) {
	if recordKind == "" || recordRef == "" {
		return LedgerEntry{}, rerrors.New(rerrors.InputRejected, "records.NewLedgerEntry", "missing record_kind/record_ref", nil)
	}
	seq := uint64(0)
	prevHash := ZeroHash
	if prev != nil {
		prevBytes, err := canon.BytesExcluding(prev, "signature")
		if err != nil {
			return LedgerEntry{}, rerrors.New(rerrors.InputRejected, "records.NewLedgerEntry", "canonicalize prior entry", err)
		}
		prevHash = canon.HashBytes(prevBytes)
		seq = prev.Seq + 1
	}
	e := LedgerEntry{
		EntryID:       f.NewID(),
		Seq:           seq,
		PrevEntryHash: prevHash,
		RecordKind:    recordKind,
		RecordRef:     recordRef,
		Timestamp:     f.now(),
	}
	return e, nil
}

// NewPolicyBundle builds a PolicyBundle. Rule priority uniqueness is
// enforced here as a kind-specific invariant; signing is the caller's
// responsibility (internal/policy.BundleLoader only verifies the signature
// via pkg/signing when a bundle is loaded).
func (f *Factory) NewPolicyBundle(bundleVersion string, authorityScope []string, createdBy string, rules []Rule) (PolicyBundle, error) {
	if bundleVersion == "" || createdBy == "" || len(rules) == 0 {
		return PolicyBundle{}, rerrors.New(rerrors.InputRejected, "records.NewPolicyBundle", "missing required field", nil)
	}
	seen := make(map[int]bool, len(rules))
	for _, r := range rules {
		if seen[r.Priority] {
			return PolicyBundle{}, rerrors.New(rerrors.InputRejected, "records.NewPolicyBundle",
				fmt.Sprintf("duplicate rule priority %d", r.Priority), nil)
		}
		seen[r.Priority] = true
	}
	return PolicyBundle{
		BundleID:       f.NewID(),
		BundleVersion:  bundleVersion,
		AuthorityScope: authorityScope,
		CreatedBy:      createdBy,
		CreatedAt:      f.now(),
		Rules:          rules,
	}, nil
}

// NewRoutingDecision builds a RoutingDecision. ledger_entry_id is attached
// later, non-hashed, once the ledger assigns it (spec.md §9's cyclic
// reference resolution).
func (f *Factory) NewRoutingDecision(alertID, ruleID string, action RoutingAction, authority Authority, explanationRef string) (RoutingDecision, error) {
	if alertID == "" {
		return RoutingDecision{}, rerrors.New(rerrors.InputRejected, "records.NewRoutingDecision", "missing alert_id", nil)
	}
	if action == "" {
		return RoutingDecision{}, rerrors.New(rerrors.InputRejected, "records.NewRoutingDecision", "missing routing_action", nil)
	}
	return RoutingDecision{
		DecisionID:           f.NewID(),
		AlertID:              alertID,
		RuleID:               ruleID,
		RoutingAction:        action,
		RequiredAuthority:    authority,
		ExplanationReference: explanationRef,
		DecisionTimestamp:    f.now(),
	}, nil
}

// NewCommandPayload builds the unsigned payload half of a Command; signing
// is performed by internal/dispatch.CommandDispatcher, which owns the
// active signing key.
func (f *Factory) NewCommandPayload(commandType, target, incidentID, policyID, policyVersion string, authority Authority) (CommandPayload, error) {
	if commandType == "" || target == "" {
		return CommandPayload{}, rerrors.New(rerrors.InputRejected, "records.NewCommandPayload", "missing command_type/target", nil)
	}
	return CommandPayload{
		CommandID:        f.NewID(),
		CommandType:      commandType,
		Target:           target,
		IncidentID:       incidentID,
		PolicyID:         policyID,
		PolicyVersion:    policyVersion,
		IssuingAuthority: authority,
		Timestamp:        f.now(),
	}, nil
}

// NewRollbackArtifact computes rollback_token = SHA256(canonical(artifact
// minus execution_result)), per spec.md §4.5.
func (f *Factory) NewRollbackArtifact(snapshot map[string]interface{}, rollbackType string) (RollbackArtifact, error) {
	if rollbackType == "" {
		return RollbackArtifact{}, rerrors.New(rerrors.InputRejected, "records.NewRollbackArtifact", "missing rollback_type", nil)
	}
	ra := RollbackArtifact{OriginalStateSnapshot: snapshot, RollbackType: rollbackType}
	token, err := canon.HashExcluding(ra, "execution_result", "rollback_token")
	if err != nil {
		return RollbackArtifact{}, rerrors.New(rerrors.InputRejected, "records.NewRollbackArtifact", "hash computation failed", err)
	}
	ra.RollbackToken = token
	return ra, nil
}

// NewHostEvent / NewProcessEvent build the supplemented telemetry record
// kinds (SPEC_FULL.md §10).
func (f *Factory) NewHostEvent(hostID, eventType string, attrs map[string]string) (HostEvent, error) {
	if hostID == "" || eventType == "" {
		return HostEvent{}, rerrors.New(rerrors.InputRejected, "records.NewHostEvent", "missing host_id/event_type", nil)
	}
	e := HostEvent{EventID: f.NewID(), HostID: hostID, ObservedAt: f.now(), EventType: eventType, Attributes: attrs}
	h, err := immutableHash(e)
	if err != nil {
		return HostEvent{}, rerrors.New(rerrors.InputRejected, "records.NewHostEvent", "hash computation failed", err)
	}
	e.ImmutableHash = h
	return e, nil
}

func (f *Factory) NewProcessEvent(hostID string, pid int, eventType string, attrs map[string]string) (ProcessEvent, error) {
	if hostID == "" || eventType == "" {
		return ProcessEvent{}, rerrors.New(rerrors.InputRejected, "records.NewProcessEvent", "missing host_id/event_type", nil)
	}
	e := ProcessEvent{EventID: f.NewID(), HostID: hostID, Pid: pid, ObservedAt: f.now(), EventType: eventType, Attributes: attrs}
	h, err := immutableHash(e)
	if err != nil {
		return ProcessEvent{}, rerrors.New(rerrors.InputRejected, "records.NewProcessEvent", "hash computation failed", err)
	}
	e.ImmutableHash = h
	return e, nil
}

// NewInteraction builds a deception Interaction record.
func (f *Factory) NewInteraction(decoyID, interactionType, sourceContextID string) (Interaction, error) {
	if decoyID == "" || interactionType == "" {
		return Interaction{}, rerrors.New(rerrors.InputRejected, "records.NewInteraction", "missing decoy_id/interaction_type", nil)
	}
	i := Interaction{InteractionID: f.NewID(), DecoyID: decoyID, ObservedAt: f.now(), InteractionType: interactionType, SourceContextID: sourceContextID}
	h, err := immutableHash(i)
	if err != nil {
		return Interaction{}, rerrors.New(rerrors.InputRejected, "records.NewInteraction", "hash computation failed", err)
	}
	i.ImmutableHash = h
	return i, nil
}

// NewPlaybookExecution builds the unsigned half of a PlaybookExecution;
// signing is performed by the caller holding the playbook signing key,
// mirroring Command's split between RecordFactory and dispatcher.
func (f *Factory) NewPlaybookExecution(playbookID, incidentID string, steps []string) (PlaybookExecution, error) {
	if playbookID == "" || incidentID == "" {
		return PlaybookExecution{}, rerrors.New(rerrors.InputRejected, "records.NewPlaybookExecution", "missing playbook_id/incident_id", nil)
	}
	return PlaybookExecution{
		ExecutionID: f.NewID(),
		PlaybookID:  playbookID,
		IncidentID:  incidentID,
		Steps:       steps,
		StartedAt:   f.now(),
	}, nil
}

// NewSuppressionRecord builds a reason-coded suppression record, spec.md
// §4.11.
func (f *Factory) NewSuppressionRecord(alertID, policyRuleID, reason, suppressedBy string) (SuppressionRecord, error) {
	if alertID == "" || reason == "" {
		return SuppressionRecord{}, rerrors.New(rerrors.InputRejected, "records.NewSuppressionRecord", "missing alert_id/reason", nil)
	}
	return SuppressionRecord{
		SuppressionID:     f.NewID(),
		AlertID:           alertID,
		PolicyRuleID:      policyRuleID,
		SuppressionReason: reason,
		SuppressedAt:      f.now(),
		SuppressedBy:      suppressedBy,
	}, nil
}

// NewReport builds the unsigned half of a Report; signing is the caller's
// responsibility via pkg/signing.
func (f *Factory) NewReport(reportKind, subjectRef string, bodyHash string) (Report, error) {
	if reportKind == "" || bodyHash == "" {
		return Report{}, rerrors.New(rerrors.InputRejected, "records.NewReport", "missing report_kind/body_hash", nil)
	}
	return Report{
		ReportID:    f.NewID(),
		ReportKind:  reportKind,
		GeneratedAt: f.now(),
		SubjectRef:  subjectRef,
		BodyHash:    bodyHash,
	}, nil
}

// SortedUnique is a small helper kept local to the factory for deterministic
// ordering of string sets before they feed canonical hashing (used by the
// UBA baseline constructors in internal/uba, which import this helper via
// SortedUnique).
func SortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
