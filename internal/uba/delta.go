package uba

import (
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// DeltaClassifier assigns exactly one of the five enumerated delta types to
// a change between a prior baseline and a new observation window.
// Classification is type-only: it never makes a statement about severity,
// intent, or threat, per original_source/uba-drift/engine/delta_classifier.py's
// valid_types constraint.
//
// Precedence is deterministic and fixed so exactly one type is ever
// assigned to a given (prior, new) pair: a newly observed feature "wins"
// its own category before falling through to FREQUENCY_SHIFT, and the
// categories are checked in a fixed order (event type, host, time bucket,
// privilege) so a window that introduces more than one new category still
// yields a single, reproducible classification.
type DeltaClassifier struct {
	factory *records.Factory
}

// NewDeltaClassifier wires a RecordFactory.
func NewDeltaClassifier(factory *records.Factory) *DeltaClassifier {
	return &DeltaClassifier{factory: factory}
}

// Classify compares prior against new and returns the single Delta that
// best describes the change, or (zero, false) if the two baselines hash
// identically (no drift).
func (c *DeltaClassifier) Classify(identityID string, prior, next records.Baseline, window Window) (records.Delta, bool, error) {
	if prior.BaselineHash == next.BaselineHash {
		return records.Delta{}, false, nil
	}

	deltaType, ok := classifyType(prior, next)
	if !ok {
		return records.Delta{}, false, rerrors.New(rerrors.IntegrityViolation, "uba.DeltaClassifier.Classify",
			"baseline hashes differ but no classification type applies", nil)
	}

	d := records.Delta{
		DeltaID:     c.factory.NewID(),
		IdentityID:  identityID,
		DeltaType:   deltaType,
		WindowStart: window.Start.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		WindowEnd:   window.End.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		PriorHash:   prior.BaselineHash,
		NewHash:     next.BaselineHash,
		ObservedAt:  c.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
	hash, err := canon.HashExcluding(d, "immutable_hash")
	if err != nil {
		return records.Delta{}, false, rerrors.New(rerrors.InputRejected, "uba.DeltaClassifier.Classify", identityID, err)
	}
	d.ImmutableHash = hash
	return d, true, nil
}

func classifyType(prior, next records.Baseline) (records.DeltaType, bool) {
	if hasNew(next.EventTypes, prior.EventTypes) {
		return records.DeltaNewEventType, true
	}
	if hasNew(next.Hosts, prior.Hosts) {
		return records.DeltaNewHost, true
	}
	if hasNew(next.TimeBuckets, prior.TimeBuckets) {
		return records.DeltaNewTimeBucket, true
	}
	if hasNew(next.Privileges, prior.Privileges) {
		return records.DeltaNewPrivilege, true
	}
	// Same category membership on both sides, but the hash still differs
	// (e.g. a shift in relative composition/frequency the multiset hash
	// alone cannot otherwise express as a new category). This is the only
	// remaining explanation consistent with classification being type-only.
	return records.DeltaFrequencyShift, true
}

func hasNew(next, prior []string) bool {
	priorSet := make(map[string]bool, len(prior))
	for _, v := range prior {
		priorSet[v] = true
	}
	for _, v := range next {
		if !priorSet[v] {
			return true
		}
	}
	return false
}
