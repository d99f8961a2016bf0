// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/sigil-dev/graphscope/internal/graph"
	sigilerr "github.com/sigil-dev/graphscope/pkg/errors"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

// ExportFormat identifies the export file layout.
const ExportFormat = "graphscope.snapshot/v1"

// maxHeaderSize bounds the metadata header of an export file.
const maxHeaderSize = 1 << 20

// Export file layout, zstd-compressed as a whole:
//
//	[4 bytes: header length, big-endian]
//	[header YAML: exportHeader]
//	[snapshot JSON]
type exportHeader struct {
	Format   string       `yaml:"format"`
	Snapshot SnapshotInfo `yaml:"snapshot"`
}

// Checksum returns the hex blake3 hash of the snapshot's JSON encoding.
func Checksum(s graph.Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "encoding snapshot: %w", err)
	}
	return checksumBytes(data), nil
}

func checksumBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Export writes rec to w as a compressed export file.
func Export(w io.Writer, rec *Record) error {
	body, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "encoding snapshot: %w", err)
	}

	info := rec.SnapshotInfo
	info.Checksum = checksumBytes(body)
	info.NodeCount = len(rec.Snapshot.Nodes)
	info.EdgeCount = len(rec.Snapshot.Edges)
	header, err := yaml.Marshal(exportHeader{Format: ExportFormat, Snapshot: info})
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "encoding export header: %w", err)
	}

	encoder, err := zstd.NewWriter(w)
	if err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "creating zstd encoder: %w", err)
	}
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(header)))
	for _, chunk := range [][]byte{size[:], header, body} {
		if _, err := encoder.Write(chunk); err != nil {
			encoder.Close()
			return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "compressing: %w", err)
		}
	}
	if err := encoder.Close(); err != nil {
		return sigilerr.Errorf(sigilerr.CodeStoreSnapshotEncode, "closing encoder: %w", err)
	}
	return nil
}

// Import reads an export file, verifying its format and checksum.
func Import(r io.Reader) (*Record, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreSnapshotInvalid, "creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreSnapshotInvalid, "decompressing: %w", err)
	}
	if len(data) < 4 {
		return nil, sigilerr.New(sigilerr.CodeStoreSnapshotInvalid, "export file is truncated")
	}
	size := binary.BigEndian.Uint32(data[:4])
	if size > maxHeaderSize || int(size) > len(data)-4 {
		return nil, sigilerr.New(sigilerr.CodeStoreSnapshotInvalid, "export header length out of range",
			sigilerr.Field("header_size", size))
	}

	var header exportHeader
	if err := yaml.Unmarshal(data[4:4+size], &header); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreSnapshotInvalid, "decoding export header: %w", err)
	}
	if header.Format != ExportFormat {
		return nil, sigilerr.New(sigilerr.CodeStoreSnapshotInvalid, "unknown export format",
			sigilerr.Field("format", header.Format))
	}

	body := data[4+size:]
	if got := checksumBytes(body); got != header.Snapshot.Checksum {
		return nil, sigilerr.New(sigilerr.CodeStoreSnapshotChecksum, "snapshot checksum mismatch",
			sigilerr.Field("want", header.Snapshot.Checksum), sigilerr.Field("got", got))
	}

	rec := &Record{SnapshotInfo: header.Snapshot}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&rec.Snapshot); err != nil {
		return nil, sigilerr.Errorf(sigilerr.CodeStoreSnapshotInvalid, "decoding snapshot: %w", err)
	}
	if err := rec.Snapshot.Validate(); err != nil {
		return nil, sigilerr.Wrap(err, sigilerr.CodeStoreSnapshotInvalid, "invalid snapshot")
	}
	return rec, nil
}
