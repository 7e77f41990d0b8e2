package main

import (
	"encoding/json"
	"fmt"

	"github.com/ransomeye/core/internal/replay"
	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/store"
)

// domainStoreBinding builds a replay.DomainBinding over every record in the
// JSONL file at path. It indexes records by their own recomputed
// reference, so Get is O(1) after the one-time scan.
func domainStoreBinding(path string) (replay.DomainBinding, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return replay.DomainBinding{}, err
	}
	defer st.Close()

	lines, _, err := st.ReadAll()
	if err != nil {
		return replay.DomainBinding{}, err
	}

	byRef := make(map[string]json.RawMessage, len(lines))
	for _, line := range lines {
		ref, err := genericRecomputeRef(line)
		if err != nil {
			return replay.DomainBinding{}, fmt.Errorf("%s: %w", path, err)
		}
		byRef[ref] = line
	}

	return replay.DomainBinding{
		Get: func(ref string) (json.RawMessage, bool, error) {
			raw, ok := byRef[ref]
			return raw, ok, nil
		},
		RecomputeRef: genericRecomputeRef,
	}, nil
}

// genericRecomputeRef recomputes the value a ledger entry's record_ref
// should equal for raw, honoring each kind's own hash-exclusion
// convention: content-addressed kinds exclude {immutable_hash,
// ledger_entry_id}; RollbackArtifact-shaped records exclude
// {execution_result, rollback_token}; everything else (Command,
// RoutingDecision, SuppressionRecord) is referenced by the hash of its full
// canonical bytes.
func genericRecomputeRef(raw json.RawMessage) (string, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", err
	}
	switch {
	case hasKey(decoded, "immutable_hash"):
		return canon.HashExcluding(decoded, "immutable_hash", "ledger_entry_id")
	case hasKey(decoded, "rollback_token"):
		return canon.HashExcluding(decoded, "execution_result", "rollback_token")
	default:
		b, err := canon.Bytes(decoded)
		if err != nil {
			return "", err
		}
		return canon.HashBytes(b), nil
	}
}

func hasKey(m map[string]interface{}, key string) bool {
	_, ok := m[key]
	return ok
}
