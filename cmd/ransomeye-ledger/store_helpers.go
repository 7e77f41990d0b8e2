package main

import (
	"encoding/json"
	"fmt"

	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/store"
)

func openLedgerReadOnly(path string) (*store.AppendOnlyStore, error) {
	return store.OpenReadOnly(path)
}

func decodeLedgerLines(st *store.AppendOnlyStore) ([]records.LedgerEntry, error) {
	lines, recovery, err := st.ReadAll()
	if err != nil {
		return nil, err
	}
	if recovery != nil {
		fmt.Printf("warning: ledger has a partial tail line at offset %d (%d bytes truncated)\n", recovery.Offset, recovery.TruncatedBytes)
	}
	out := make([]records.LedgerEntry, 0, len(lines))
	for _, line := range lines {
		var e records.LedgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
