// Package hashing wraps pkg/canon with file-hashing helpers. Chunked file
// hashing is guaranteed byte-identical to hashing the whole file at once
// because both paths feed the same sha256.Hash incrementally.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/ransomeye/core/pkg/canon"
)

const defaultChunkSize = 4096

// OfCanonical returns sha256(canonical(v without excluded)) as lowercase hex.
func OfCanonical(v interface{}, excluded ...string) (string, error) {
	if len(excluded) == 0 {
		return canon.Hash(v)
	}
	return canon.HashExcluding(v, excluded...)
}

// OfFile hashes a file's contents in fixed-size chunks, returning lowercase
// hex. Equivalent to hashing the whole file in one read.
func OfFile(path string, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashing: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("hashing: read %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// OfBytes is a pass-through hex sha256 of raw bytes.
func OfBytes(b []byte) string {
	return canon.HashBytes(b)
}
