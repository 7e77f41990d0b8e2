// Package uba implements the UBA Drift + Signal + Risk components from
// spec.md §4.12: baseline hashing over observed-feature multisets,
// type-only delta classification, explicit (non-rolling) windows, signal
// composition that references external context without mutating it, and
// risk-score normalization with confidence scoring.
package uba

import (
	"time"

	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// observedMultiset is the exact field set the baseline hash is computed
// over; order is normalized (sorted + deduplicated) before hashing so two
// equivalent observation sets always hash identically regardless of
// collection order.
type observedMultiset struct {
	EventTypes []string `json:"event_types"`
	Hosts      []string `json:"hosts"`
	TimeBuckets []string `json:"time_buckets"`
	Privileges []string `json:"privileges"`
}

// BaselineHasher computes the canonical hash over an identity's observed
// multisets; drift is defined as a change in this hash between
// observation windows.
type BaselineHasher struct {
	factory *records.Factory
}

// NewBaselineHasher wires a RecordFactory.
func NewBaselineHasher(factory *records.Factory) *BaselineHasher {
	return &BaselineHasher{factory: factory}
}

// Compute builds a Baseline record for identityID from raw (possibly
// duplicated, unordered) observed feature lists.
func (h *BaselineHasher) Compute(identityID string, eventTypes, hosts, timeBuckets, privileges []string) (records.Baseline, error) {
	if identityID == "" {
		return records.Baseline{}, rerrors.New(rerrors.InputRejected, "uba.BaselineHasher.Compute", "missing identity_id", nil)
	}
	set := observedMultiset{
		EventTypes:  records.SortedUnique(eventTypes),
		Hosts:       records.SortedUnique(hosts),
		TimeBuckets: records.SortedUnique(timeBuckets),
		Privileges:  records.SortedUnique(privileges),
	}
	hash, err := canon.Hash(set)
	if err != nil {
		return records.Baseline{}, rerrors.New(rerrors.InputRejected, "uba.BaselineHasher.Compute", identityID, err)
	}
	return records.Baseline{
		BaselineID:   h.factory.NewID(),
		IdentityID:   identityID,
		EventTypes:   set.EventTypes,
		Hosts:        set.Hosts,
		TimeBuckets:  set.TimeBuckets,
		Privileges:   set.Privileges,
		BaselineHash: hash,
		ComputedAt:   h.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}, nil
}

// Window is an explicit observation window; there is no implicit rolling
// window behavior anywhere in this package.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowBuilder builds explicit [start, end] windows of a configured size.
type WindowBuilder struct {
	Size time.Duration
}

// NewWindowBuilder wires a fixed window size (e.g. from
// UBA_DRIFT_OBSERVATION_WINDOW_DAYS).
func NewWindowBuilder(size time.Duration) *WindowBuilder {
	return &WindowBuilder{Size: size}
}

// Build returns the window ending at end, sized per the builder's
// configuration.
func (w *WindowBuilder) Build(end time.Time) Window {
	return Window{Start: end.Add(-w.Size), End: end}
}
