package forensics_test

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/internal/forensics"
	"github.com/ransomeye/core/pkg/hashing"
	"github.com/ransomeye/core/pkg/records"
)

func TestDeterministicGzipProducesIdenticalBytesAcrossCalls(t *testing.T) {
	raw := []byte("forensic evidence payload")

	first, err := forensics.DeterministicGzip(raw)
	require.NoError(t, err)
	second, err := forensics.DeterministicGzip(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDeterministicGzipRoundTrips(t *testing.T) {
	raw := []byte("forensic evidence payload")
	compressed, err := forensics.DeterministicGzip(raw)
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, raw, decompressed)
}

func TestCollectComputesContentHashAndDeterministicCompression(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evidence.bin")
	content := []byte("suspicious binary content")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	collector := forensics.NewCollector(records.NewFactory())
	artifact, compressed, err := collector.Collect(path)
	require.NoError(t, err)

	expectedHash, err := hashing.OfFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, expectedHash, artifact.ContentHash)
	assert.Equal(t, hashing.OfBytes(compressed), artifact.CompressedHash)
	assert.Equal(t, int64(len(compressed)), artifact.CompressedSize)
	assert.NotEmpty(t, artifact.ArtifactID)
	assert.NotEmpty(t, artifact.CollectedAt)
}

func TestCollectIsContentHashStableAcrossIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.bin")
	pathB := filepath.Join(dir, "b.bin")
	content := []byte("identical content in two files")
	require.NoError(t, os.WriteFile(pathA, content, 0o644))
	require.NoError(t, os.WriteFile(pathB, content, 0o644))

	collector := forensics.NewCollector(records.NewFactory())
	artifactA, _, err := collector.Collect(pathA)
	require.NoError(t, err)
	artifactB, _, err := collector.Collect(pathB)
	require.NoError(t, err)

	assert.Equal(t, artifactA.ContentHash, artifactB.ContentHash)
}

func TestCollectMissingFileReturnsError(t *testing.T) {
	collector := forensics.NewCollector(records.NewFactory())
	_, _, err := collector.Collect(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	assert.Error(t, err)
}
