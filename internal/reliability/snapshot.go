package reliability

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotFormat is bumped when the Snapshot layout changes
const snapshotFormat = 1

// Snapshot is a point-in-time copy of every record-store key. Records hold
// the raw JSON documents; the snapshot itself is msgpack inside gzip.
type Snapshot struct {
	Format        int               `msgpack:"format"`
	CreatedAt     time.Time         `msgpack:"createdAt"`
	SchemaVersion int               `msgpack:"schemaVersion"`
	Records       map[string][]byte `msgpack:"records"`
	Checksum      string            `msgpack:"checksum"`
}

// checksum hashes the records in key order
func checksum(records map[string][]byte) string {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(records[k])
		h.Write([]byte{0})
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}

// WriteSnapshot encodes snap to w as gzip'd msgpack
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	gz := gzip.NewWriter(w)
	if err := msgpack.NewEncoder(gz).Encode(snap); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot and verifies its checksum
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot archive: %w", err)
	}
	defer gz.Close()

	var snap Snapshot
	if err := msgpack.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Format != snapshotFormat {
		return nil, fmt.Errorf("unsupported snapshot format %d", snap.Format)
	}
	if got := checksum(snap.Records); got != snap.Checksum {
		return nil, fmt.Errorf("snapshot checksum mismatch: have %s, want %s", got, snap.Checksum)
	}
	return &snap, nil
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
