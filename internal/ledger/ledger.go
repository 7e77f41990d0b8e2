// Package ledger implements AuditLedger: a hash-chained, ed25519-signed
// journal built atop pkg/store.AppendOnlyStore. Every subsystem's writes
// funnel through an AuditLedger entry that references the domain record by
// content hash only — the ledger never stores the record itself.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
	"github.com/ransomeye/core/pkg/signing"
	"github.com/ransomeye/core/pkg/store"
)

// AuditLedger is the single-writer append surface for ledger entries.
type AuditLedger struct {
	mu      sync.Mutex
	st      *store.AppendOnlyStore
	factory *records.Factory
	signer  *signing.Signer
	last    *records.LedgerEntry
}

// Open opens (or creates) the ledger file at path, replays it to find the
// current tail entry, and returns a ready-to-append AuditLedger.
func Open(path string, factory *records.Factory, signer *signing.Signer) (*AuditLedger, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	lines, recovery, err := st.ReadAll()
	if err != nil {
		st.Close()
		return nil, err
	}
	if recovery != nil {
		// A partial tail line was found; the store itself remains valid for
		// future appends. The caller is responsible for surfacing the
		// recovery report (e.g. via a CLI warning) — the ledger does not
		// silently drop it.
	}
	l := &AuditLedger{st: st, factory: factory, signer: signer}
	if len(lines) > 0 {
		var tail records.LedgerEntry
		if err := json.Unmarshal(lines[len(lines)-1], &tail); err != nil {
			st.Close()
			return nil, rerrors.New(rerrors.IntegrityViolation, "ledger.Open", path, err)
		}
		l.last = &tail
	}
	return l, nil
}

// Close releases the backing store.
func (l *AuditLedger) Close() error { return l.st.Close() }

// AppendEntry builds, signs, and durably appends the next ledger entry
// referencing recordRef (the content hash of a domain record of kind
// recordKind). On success it returns the persisted entry including its
// signer_key_id and signature; the entry's own canonical content hash
// (the linkage value for any record that stores a non-hashed
// ledger_entry_id back-reference) is obtained from EntryContentHash.
func (l *AuditLedger) AppendEntry(recordKind, recordRef string) (records.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, err := l.factory.NewLedgerEntry(l.last, recordKind, recordRef)
	if err != nil {
		return records.LedgerEntry{}, err
	}

	entry.SignerKeyID = l.signer.KeyID
	signBytes, err := canon.BytesExcluding(entry, "signature")
	if err != nil {
		return records.LedgerEntry{}, rerrors.New(rerrors.IntegrityViolation, "ledger.AppendEntry", "canonicalize entry", err)
	}
	entry.Signature = l.signer.Sign(signBytes)

	line, err := canon.Bytes(entry)
	if err != nil {
		return records.LedgerEntry{}, rerrors.New(rerrors.IntegrityViolation, "ledger.AppendEntry", "canonicalize signed entry", err)
	}
	if err := l.st.Append(line); err != nil {
		return records.LedgerEntry{}, err
	}
	l.last = &entry
	return entry, nil
}

// EntryContentHash returns sha256(canonical(entry minus signature)) — the
// value the *next* entry's prev_entry_hash must equal, and the value a
// domain record may optionally store (non-hashed) as its ledger_entry_id.
func EntryContentHash(entry records.LedgerEntry) (string, error) {
	b, err := canon.BytesExcluding(entry, "signature")
	if err != nil {
		return "", err
	}
	return canon.HashBytes(b), nil
}

// Head returns the current tail entry, or (zero, false) if the ledger is
// empty.
func (l *AuditLedger) Head() (records.LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return records.LedgerEntry{}, false
	}
	return *l.last, true
}

// ReadAll decodes every complete entry in file order.
func (l *AuditLedger) ReadAll() ([]records.LedgerEntry, *store.RecoveryReport, error) {
	lines, recovery, err := l.st.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	out := make([]records.LedgerEntry, 0, len(lines))
	for i, line := range lines {
		var e records.LedgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, nil, rerrors.New(rerrors.IntegrityViolation, "ledger.ReadAll", fmt.Sprintf("entry %d", i), err)
		}
		out = append(out, e)
	}
	return out, recovery, nil
}

// VerifyChainOnly performs spec.md §4.10 check (1): seq monotonicity from
// 0, prev_entry_hash linkage, and signature verification. It does not
// perform the integrity/custody/config/simulation checks — those belong to
// internal/replay.Validator, which composes this with the domain stores.
func VerifyChainOnly(entries []records.LedgerEntry, resolver signing.KeyResolver) error {
	expectedPrev := records.ZeroHash
	for i, e := range entries {
		if e.Seq != uint64(i) {
			return rerrors.New(rerrors.IntegrityViolation, "ledger.VerifyChainOnly",
				fmt.Sprintf("entry at index %d has seq %d, want %d", i, e.Seq, i), nil)
		}
		if e.PrevEntryHash != expectedPrev {
			return rerrors.New(rerrors.IntegrityViolation, "ledger.VerifyChainOnly",
				fmt.Sprintf("entry seq %d has prev_entry_hash %s, want %s", e.Seq, e.PrevEntryHash, expectedPrev), nil)
		}
		signBytes, err := canon.BytesExcluding(e, "signature")
		if err != nil {
			return rerrors.New(rerrors.IntegrityViolation, "ledger.VerifyChainOnly", fmt.Sprintf("entry seq %d", e.Seq), err)
		}
		if err := signing.VerifyWithResolver(resolver, e.SignerKeyID, signBytes, e.Signature); err != nil {
			return rerrors.New(rerrors.CryptoFailure, "ledger.VerifyChainOnly", fmt.Sprintf("entry seq %d", e.Seq), err)
		}
		expectedPrev = canon.HashBytes(signBytes)
	}
	return nil
}
