// Discovery - hybrid media search, sync, and personalization service
// SPDX-License-Identifier: AGPL-3.0-or-later

package personalize

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"io"
)

// wireAdapter is the gob-encodable payload. Adapter itself is not encoded
// directly so the wire format stays decoupled from in-memory field order.
type wireAdapter struct {
	Rank  int
	Dim   int
	A     [][]float64
	B     [][]float64
	Sigma float64
}

// EncodeAdapter serializes an adapter to the gob+gzip blob format the
// lora_adapters.weights column stores, with a leading SHA-256 checksum of
// the uncompressed payload for integrity checking on read, mirroring
// recommend/storage's model persistence scheme.
func EncodeAdapter(a Adapter) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(wireAdapter{Rank: a.Rank, Dim: a.Dim, A: a.A, B: a.B, Sigma: a.Sigma}); err != nil {
		return nil, fmt.Errorf("encode adapter: %w", err)
	}
	checksum := sha256.Sum256(raw.Bytes())

	var out bytes.Buffer
	out.Write(checksum[:])
	gz := gzip.NewWriter(&out)
	if _, err := gz.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress adapter: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close adapter compressor: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeAdapter reverses EncodeAdapter, verifying the embedded checksum
// before trusting the decoded matrices.
func DecodeAdapter(blob []byte) (Adapter, error) {
	if len(blob) < sha256.Size {
		return Adapter{}, fmt.Errorf("decode adapter: blob too short")
	}
	wantSum := blob[:sha256.Size]
	gz, err := gzip.NewReader(bytes.NewReader(blob[sha256.Size:]))
	if err != nil {
		return Adapter{}, fmt.Errorf("decompress adapter: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return Adapter{}, fmt.Errorf("read adapter: %w", err)
	}

	gotSum := sha256.Sum256(raw)
	if !bytes.Equal(gotSum[:], wantSum) {
		return Adapter{}, fmt.Errorf("decode adapter: checksum mismatch")
	}

	var w wireAdapter
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&w); err != nil {
		return Adapter{}, fmt.Errorf("decode adapter: %w", err)
	}
	return Adapter{Rank: w.Rank, Dim: w.Dim, A: w.A, B: w.B, Sigma: w.Sigma}, nil
}
