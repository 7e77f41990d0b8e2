package uba

import (
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// SignalBuilder aggregates delta_ids and explicit external context
// references (killchain/graph/incident IDs) into a Signal record. It never
// mutates the referenced entities — it only stores their ids.
type SignalBuilder struct {
	factory *records.Factory
}

// NewSignalBuilder wires a RecordFactory.
func NewSignalBuilder(factory *records.Factory) *SignalBuilder {
	return &SignalBuilder{factory: factory}
}

// Compose builds a Signal referencing deltaIDs and contextIDs. Both slices
// are sorted+deduplicated before hashing so composition order never affects
// the record's immutable_hash.
func (b *SignalBuilder) Compose(identityID string, deltaIDs, contextIDs []string) (records.Signal, error) {
	if identityID == "" || len(deltaIDs) == 0 {
		return records.Signal{}, rerrors.New(rerrors.InputRejected, "uba.SignalBuilder.Compose", "missing identity_id/delta_ids", nil)
	}
	s := records.Signal{
		SignalID:   b.factory.NewID(),
		IdentityID: identityID,
		DeltaIDs:   records.SortedUnique(deltaIDs),
		ContextIDs: records.SortedUnique(contextIDs),
		ComposedAt: b.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
	hash, err := canon.HashExcluding(s, "immutable_hash")
	if err != nil {
		return records.Signal{}, rerrors.New(rerrors.InputRejected, "uba.SignalBuilder.Compose", identityID, err)
	}
	s.ImmutableHash = hash
	return s, nil
}
