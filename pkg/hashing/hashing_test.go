package hashing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/pkg/canon"
	"github.com/ransomeye/core/pkg/hashing"
)

type thing struct {
	A string `json:"a"`
	B string `json:"b"`
}

func TestOfCanonicalMatchesCanonHash(t *testing.T) {
	v := thing{A: "1", B: "2"}
	got, err := hashing.OfCanonical(v)
	require.NoError(t, err)
	want, err := canon.Hash(v)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOfCanonicalWithExclusionsMatchesCanonHashExcluding(t *testing.T) {
	v := thing{A: "1", B: "2"}
	got, err := hashing.OfCanonical(v, "b")
	require.NoError(t, err)
	want, err := canon.HashExcluding(v, "b")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOfBytesIsPassThroughSha256(t *testing.T) {
	assert.Equal(t, canon.HashBytes([]byte("payload")), hashing.OfBytes([]byte("payload")))
}

func TestOfFileMatchesOfBytesForSameContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := make([]byte, 10000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := hashing.OfFile(path, 4096)
	require.NoError(t, err)
	assert.Equal(t, hashing.OfBytes(content), got)
}

func TestOfFileIsChunkSizeInvariant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := []byte("the quick brown fox jumps over the lazy dog, repeated many times over")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	small, err := hashing.OfFile(path, 1)
	require.NoError(t, err)
	large, err := hashing.OfFile(path, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, small, large)
}

func TestOfFileMissingFileReturnsError(t *testing.T) {
	_, err := hashing.OfFile("/nonexistent/path/does/not/exist", 4096)
	assert.Error(t, err)
}
