// Package forensics builds ForensicArtifact records (spec.md §3):
// content-addressed by SHA256 of the source file's bytes, with
// deterministic gzip compression (fixed mtime, stripped filename) so the
// compressed form is byte-identical across runs.
package forensics

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"time"

	"github.com/ransomeye/core/pkg/hashing"
	"github.com/ransomeye/core/pkg/records"
	"github.com/ransomeye/core/pkg/rerrors"
)

// Collector builds ForensicArtifact records from files on disk.
type Collector struct {
	factory *records.Factory
}

// NewCollector wires a RecordFactory.
func NewCollector(factory *records.Factory) *Collector {
	return &Collector{factory: factory}
}

// Collect hashes sourcePath, deterministically gzip-compresses it, and
// returns the resulting ForensicArtifact plus the compressed bytes for the
// caller to persist.
func (c *Collector) Collect(sourcePath string) (records.ForensicArtifact, []byte, error) {
	contentHash, err := hashing.OfFile(sourcePath, 0)
	if err != nil {
		return records.ForensicArtifact{}, nil, rerrors.New(rerrors.IOFailure, "forensics.Collect", sourcePath, err)
	}

	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		return records.ForensicArtifact{}, nil, rerrors.New(rerrors.IOFailure, "forensics.Collect", sourcePath, err)
	}

	compressed, err := DeterministicGzip(raw)
	if err != nil {
		return records.ForensicArtifact{}, nil, rerrors.New(rerrors.IOFailure, "forensics.Collect", sourcePath, err)
	}

	artifact := records.ForensicArtifact{
		ArtifactID:     c.factory.NewID(),
		SourcePath:     sourcePath,
		ContentHash:    contentHash,
		CompressedHash: hashing.OfBytes(compressed),
		CompressedSize: int64(len(compressed)),
		CollectedAt:    "", // set below via the factory's clock
	}
	artifact.CollectedAt = c.factory.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")
	return artifact, compressed, nil
}

// DeterministicGzip compresses raw with a fixed mtime (Unix epoch) and no
// embedded filename/comment, so the same input always produces the same
// compressed bytes regardless of when or where it runs.
func DeterministicGzip(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	w.ModTime = time.Unix(0, 0)
	w.Name = ""
	w.Comment = ""
	w.OS = 0xff // "unknown" OS byte, avoids platform-dependent output

	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
