// Package store implements the durable JSONL append-only file contract
// every subsystem stores its domain records in: one canonical JSON object
// per line, fsync'd before Append returns, single-writer enforced by an
// OS-level exclusive advisory lock, and a recovery report (rather than
// silent truncation) when the reader finds a partial tail line.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/ransomeye/core/pkg/rerrors"
)

// RecoveryReport describes a partial (non-newline-terminated) tail line
// found on read, per the Open Question decision in SPEC_FULL.md §11: the
// core surfaces recovery information instead of discarding silently.
type RecoveryReport struct {
	TruncatedBytes int64
	Offset         int64
}

// AppendOnlyStore is a durable, JSONL-backed, single-writer-per-process
// append log.
type AppendOnlyStore struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	readOnly bool
}

// Open opens path for read-write appending, taking an exclusive OS-level
// advisory lock so at most one writer can hold the store open at a time.
// The file is created if it does not exist.
func Open(path string) (*AppendOnlyStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "store.Open", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, rerrors.New(rerrors.IOFailure, "store.Open", path+": store is locked by another writer", err)
	}
	return &AppendOnlyStore{path: path, file: f}, nil
}

// OpenReadOnly opens path for reading only; Append on the returned store
// always fails. No lock is taken, matching the "readers take no lock"
// resource policy.
func OpenReadOnly(path string) (*AppendOnlyStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerrors.New(rerrors.IOFailure, "store.OpenReadOnly", path, err)
	}
	return &AppendOnlyStore{path: path, file: f, readOnly: true}, nil
}

// Close releases the file handle (and, for a writer, the advisory lock).
func (s *AppendOnlyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Path returns the backing file path.
func (s *AppendOnlyStore) Path() string { return s.path }

// Append canonicalizes nothing itself — it writes the caller-supplied
// already-canonical bytes as one line, flushes, and fsyncs before
// returning. A successful return guarantees durability across a process
// crash.
func (s *AppendOnlyStore) Append(canonicalLine []byte) error {
	if s.readOnly {
		return rerrors.New(rerrors.IOFailure, "store.Append", s.path, fmt.Errorf("store opened read-only"))
	}
	if bytes.ContainsRune(canonicalLine, '\n') {
		return rerrors.New(rerrors.InputRejected, "store.Append", s.path, fmt.Errorf("record bytes contain an embedded newline"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line := append(append([]byte{}, canonicalLine...), '\n')
	if _, err := s.file.Write(line); err != nil {
		return rerrors.New(rerrors.IOFailure, "store.Append", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return rerrors.New(rerrors.IOFailure, "store.Append", s.path, err)
	}
	return nil
}

// AppendJSON canonicalizes nothing; it is a convenience for callers that
// already hold a json.RawMessage-compatible value and just want it written
// as a line (used by components that pre-canonicalize via pkg/canon and
// then pass raw bytes through AppendJSON for symmetry with ReadAll's
// json.RawMessage output).
func (s *AppendOnlyStore) AppendJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return rerrors.New(rerrors.InputRejected, "store.AppendJSON", s.path, err)
	}
	return s.Append(b)
}

// ReadAll reads every complete, newline-terminated line in file order. If
// the file ends with a non-newline-terminated partial line, it is excluded
// from the returned records and described in the returned *RecoveryReport
// (nil if the file had no partial tail).
func (s *AppendOnlyStore) ReadAll() ([]json.RawMessage, *RecoveryReport, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, rerrors.New(rerrors.IOFailure, "store.ReadAll", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, rerrors.New(rerrors.IOFailure, "store.ReadAll", s.path, err)
	}
	size := info.Size()

	var records []json.RawMessage
	reader := bufio.NewReader(f)
	var offset int64
	var report *RecoveryReport
	for {
		line, err := reader.ReadBytes('\n')
		switch {
		case err == nil:
			trimmed := bytes.TrimRight(line, "\n")
			if len(trimmed) > 0 {
				records = append(records, json.RawMessage(append([]byte{}, trimmed...)))
			}
			offset += int64(len(line))
		case err == io.EOF:
			if len(line) > 0 {
				report = &RecoveryReport{TruncatedBytes: int64(len(line)), Offset: offset}
			}
			_ = size
			return records, report, nil
		default:
			return nil, nil, rerrors.New(rerrors.IOFailure, "store.ReadAll", s.path, err)
		}
	}
}

// Count returns the number of complete records currently on disk.
func (s *AppendOnlyStore) Count() (int, error) {
	records, _, err := s.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// RangeScan returns records with 0-based indices in [start, end).
func (s *AppendOnlyStore) RangeScan(start, end int) ([]json.RawMessage, error) {
	records, _, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	if start < 0 {
		start = 0
	}
	if end > len(records) {
		end = len(records)
	}
	if start >= end {
		return nil, nil
	}
	return records[start:end], nil
}
