// Package replay implements the offline ReplayEngine/Validator from
// spec.md §4.10: given a ledger, a key directory, and the domain stores it
// references, it performs five ordered check phases and reports only the
// first failure. The validator never writes into any domain store.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/ransomeye/core/internal/ledger"
	"github.com/ransomeye/core/internal/policy"
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/signing"
)

// CheckType enumerates the five ordered check phases.
type CheckType string

const (
	CheckLedger     CheckType = "LEDGER"
	CheckIntegrity  CheckType = "INTEGRITY"
	CheckCustody    CheckType = "CUSTODY"
	CheckConfig     CheckType = "CONFIG"
	CheckSimulation CheckType = "SIMULATION"
)

// Failure describes the first failing check: its type, where it occurred,
// and the underlying error.
type Failure struct {
	CheckType CheckType `json:"check_type"`
	Location  string    `json:"location"`
	Error     string    `json:"error"`
}

// Status is the validator's overall PASS|FAIL verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Report is the signed output of a validator run.
type Report struct {
	ReportID         string   `json:"report_id"`
	ValidationStatus Status   `json:"validation_status"`
	FirstFailure     *Failure `json:"first_failure,omitempty"`
	CheckedAt        string   `json:"checked_at"`
	SignerKeyID      string   `json:"signer_key_id"`
	Signature        string   `json:"signature"`
}

// DomainBinding tells the validator how to resolve a ledger entry's
// record_ref for one record_kind: Get fetches the raw stored record (found
// == false means "not present in any domain store", an integrity failure);
// RecomputeRef recomputes the value that should equal LedgerEntry.RecordRef
// from that raw record, honoring the kind's own hash-exclusion convention
// (immutable_hash for content-addressed kinds, full-canonical-hash for
// commands, rollback_token for rollback artifacts).
type DomainBinding struct {
	Get          func(ref string) (json.RawMessage, bool, error)
	RecomputeRef func(raw json.RawMessage) (string, error)
}

// SignedArtifact is one custody-check target: a signed envelope plus the
// canonical-bytes exclusion set and key id used to verify it.
type SignedArtifact struct {
	Location  string
	Data      interface{}
	KeyID     string
	Signature string
	Excluded  []string
}

// SimulationCase is one alert+stored-decision pair the simulation check
// must be able to reproduce byte-for-byte (modulo decision_id/timestamp,
// which are supplied as inputs).
type SimulationCase struct {
	Alert            records.Alert
	StoredDecision   records.RoutingDecision
}

// Validator composes the five ordered checks from spec.md §4.10.
type Validator struct {
	resolver signing.KeyResolver
	router   *policy.Router
	factory  *records.Factory
}

// New wires a Validator.
func New(resolver signing.KeyResolver, router *policy.Router, factory *records.Factory) *Validator {
	return &Validator{resolver: resolver, router: router, factory: factory}
}

// Run executes the five checks in order and returns on the first failure.
func (v *Validator) Run(
	entries []records.LedgerEntry,
	bindings map[string]DomainBinding,
	bundles []records.PolicyBundle,
	bundleLoader *policy.BundleLoader,
	custody []SignedArtifact,
	simulation []SimulationCase,
	signer *signing.Signer,
) (Report, error) {
	report := Report{
		ReportID:  v.factory.NewID(),
		CheckedAt: v.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}

	if failure := v.checkLedger(entries); failure != nil {
		return v.sign(report, failure, signer)
	}
	if failure := v.checkIntegrity(entries, bindings); failure != nil {
		return v.sign(report, failure, signer)
	}
	if failure := v.checkCustody(custody); failure != nil {
		return v.sign(report, failure, signer)
	}
	if failure := v.checkConfig(bundles, bundleLoader); failure != nil {
		return v.sign(report, failure, signer)
	}
	if failure := v.checkSimulation(simulation); failure != nil {
		return v.sign(report, failure, signer)
	}

	report.ValidationStatus = StatusPass
	return v.sign(report, nil, signer)
}

func (v *Validator) sign(report Report, failure *Failure, signer *signing.Signer) (Report, error) {
	if failure != nil {
		report.ValidationStatus = StatusFail
		report.FirstFailure = failure
	}
	report.SignerKeyID = signer.KeyID
	signBytes, err := canon.BytesExcluding(report, "signature")
	if err != nil {
		return Report{}, fmt.Errorf("replay: canonicalize report: %w", err)
	}
	report.Signature = signer.Sign(signBytes)
	return report, nil
}

// checkLedger: seq monotonicity from 0, prev_entry_hash linkage, every
// entry's signature verifies.
func (v *Validator) checkLedger(entries []records.LedgerEntry) *Failure {
	if err := ledger.VerifyChainOnly(entries, v.resolver); err != nil {
		return &Failure{CheckType: CheckLedger, Location: locationForLedgerErr(entries), Error: err.Error()}
	}
	return nil
}

func locationForLedgerErr(entries []records.LedgerEntry) string {
	if len(entries) == 0 {
		return "ledger is empty"
	}
	return fmt.Sprintf("seq 0..%d", entries[len(entries)-1].Seq)
}

// checkIntegrity: for each entry's record_ref, the referenced domain record
// exists and its recomputed ref matches the recorded one.
func (v *Validator) checkIntegrity(entries []records.LedgerEntry, bindings map[string]DomainBinding) *Failure {
	for _, e := range entries {
		binding, ok := bindings[e.RecordKind]
		if !ok {
			return &Failure{CheckType: CheckIntegrity, Location: fmt.Sprintf("seq %d", e.Seq),
				Error: "no domain binding registered for record_kind " + e.RecordKind}
		}
		raw, found, err := binding.Get(e.RecordRef)
		if err != nil {
			return &Failure{CheckType: CheckIntegrity, Location: fmt.Sprintf("seq %d", e.Seq), Error: err.Error()}
		}
		if !found {
			return &Failure{CheckType: CheckIntegrity, Location: fmt.Sprintf("seq %d", e.Seq),
				Error: "referenced record " + e.RecordRef + " not found in domain store"}
		}
		recomputed, err := binding.RecomputeRef(raw)
		if err != nil {
			return &Failure{CheckType: CheckIntegrity, Location: fmt.Sprintf("seq %d", e.Seq), Error: err.Error()}
		}
		if recomputed != e.RecordRef {
			return &Failure{CheckType: CheckIntegrity, Location: fmt.Sprintf("seq %d", e.Seq),
				Error: fmt.Sprintf("recomputed hash %s does not match record_ref %s", recomputed, e.RecordRef)}
		}
	}
	return nil
}

// checkCustody: every signed artifact verifies under its advertised key id.
func (v *Validator) checkCustody(artifacts []SignedArtifact) *Failure {
	for _, a := range artifacts {
		signBytes, err := canon.BytesExcluding(a.Data, a.Excluded...)
		if err != nil {
			return &Failure{CheckType: CheckCustody, Location: a.Location, Error: err.Error()}
		}
		if err := signing.VerifyWithResolver(v.resolver, a.KeyID, signBytes, a.Signature); err != nil {
			return &Failure{CheckType: CheckCustody, Location: a.Location, Error: err.Error()}
		}
	}
	return nil
}

// checkConfig: bundle priority uniqueness, signature validity, and
// required-field presence (delegated to BundleLoader.Verify, which this
// phase reuses rather than duplicating).
func (v *Validator) checkConfig(bundles []records.PolicyBundle, loader *policy.BundleLoader) *Failure {
	for _, b := range bundles {
		if err := loader.Verify(b); err != nil {
			return &Failure{CheckType: CheckConfig, Location: b.BundleID, Error: err.Error()}
		}
	}
	return nil
}

// checkSimulation: replay routing for each alert and compare byte-for-byte
// (after canonicalization) against the stored decision, using the stored
// decision's own decision_id/decision_timestamp as inputs rather than
// minting fresh ones.
func (v *Validator) checkSimulation(cases []SimulationCase) *Failure {
	for _, c := range cases {
		replayed, err := v.router.Replay(c.Alert, c.StoredDecision.DecisionID, c.StoredDecision.DecisionTimestamp)
		if err != nil {
			return &Failure{CheckType: CheckSimulation, Location: c.Alert.AlertID, Error: err.Error()}
		}
		replayedBytes, err := canon.BytesExcluding(replayed, "ledger_entry_id")
		if err != nil {
			return &Failure{CheckType: CheckSimulation, Location: c.Alert.AlertID, Error: err.Error()}
		}
		storedBytes, err := canon.BytesExcluding(c.StoredDecision, "ledger_entry_id")
		if err != nil {
			return &Failure{CheckType: CheckSimulation, Location: c.Alert.AlertID, Error: err.Error()}
		}
		if string(replayedBytes) != string(storedBytes) {
			return &Failure{CheckType: CheckSimulation, Location: c.Alert.AlertID,
				Error: "replayed routing decision does not match stored decision"}
		}
	}
	return nil
}
