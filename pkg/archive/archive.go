// Package archive writes and reads single-file world snapshot archives.
//
// An archive is one line of JSON manifest followed by a zstd stream holding
// the snapshot as JSON. The manifest records a SHA-256 of the uncompressed
// body so a damaged archive is refused on read.
package archive

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crystal-mush/graphworld/pkg/gamedb"
	"github.com/klauspost/compress/zstd"
)

// FormatVersion is the archive layout version written by CreateArchive.
const FormatVersion = 1

// Ext is the filename suffix of every archive.
const Ext = ".snap.zst"

// ErrChecksum is returned when an archive body does not match its manifest.
var ErrChecksum = errors.New("archive: checksum mismatch")

// Manifest describes the contents of an archive.
type Manifest struct {
	Version         int    `json:"version"`
	Server          string `json:"server"`
	Timestamp       string `json:"timestamp"`
	World           string `json:"world"`
	Entities        int    `json:"entities"`
	SnapshotVersion int    `json:"snapshot_version"`
	SHA256          string `json:"sha256"`
	Size            int64  `json:"size"`
}

// ArchiveParams holds all inputs needed to create an archive.
type ArchiveParams struct {
	Dir      string           // Output directory
	World    string           // World name for the manifest
	Snapshot *gamedb.Snapshot // Snapshot to write
	Now      time.Time        // Zero means time.Now()
}

// CreateArchive writes params.Snapshot to a new archive and returns its path.
func CreateArchive(params ArchiveParams) (string, error) {
	if params.Snapshot == nil {
		return "", fmt.Errorf("archive: no snapshot")
	}
	if err := os.MkdirAll(params.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", params.Dir, err)
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	body, err := json.Marshal(params.Snapshot)
	if err != nil {
		return "", fmt.Errorf("archive: marshal snapshot: %w", err)
	}
	sum := sha256.Sum256(body)
	manifest := Manifest{
		Version:         FormatVersion,
		Server:          "graphworld",
		Timestamp:       now.UTC().Format(time.RFC3339),
		World:           params.World,
		Entities:        countEntities(params.Snapshot),
		SnapshotVersion: params.Snapshot.Version,
		SHA256:          hex.EncodeToString(sum[:]),
		Size:            int64(len(body)),
	}
	head, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("archive: marshal manifest: %w", err)
	}

	filename := fmt.Sprintf("archive-%s%s", now.UTC().Format("20060102-150405"), Ext)
	archivePath := filepath.Join(params.Dir, filename)
	tmp := archivePath + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", tmp, err)
	}
	if err := writeArchive(f, head, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("archive: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, archivePath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("archive: rename %s: %w", archivePath, err)
	}
	return archivePath, nil
}

func writeArchive(w io.Writer, head, body []byte) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(append(head, '\n')); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	zw, err := zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("archive: zstd writer: %w", err)
	}
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return fmt.Errorf("archive: write body: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archive: finish body: %w", err)
	}
	return bw.Flush()
}

// ReadArchive loads and verifies an archive.
func ReadArchive(path string) (*gamedb.Snapshot, *Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	m, err := decodeManifest(br)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: %s: %w", filepath.Base(path), err)
	}
	if m.Version > FormatVersion {
		return nil, nil, fmt.Errorf("archive: %s: format version %d is newer than %d", filepath.Base(path), m.Version, FormatVersion)
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: zstd reader: %w", err)
	}
	defer zr.Close()
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: read body: %w", err)
	}
	sum := sha256.Sum256(body)
	if hex.EncodeToString(sum[:]) != m.SHA256 || int64(len(body)) != m.Size {
		return nil, nil, fmt.Errorf("%w: %s", ErrChecksum, filepath.Base(path))
	}

	var snap gamedb.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, nil, fmt.Errorf("archive: decode snapshot: %w", err)
	}
	if snap.Entries == nil {
		snap.Entries = make(map[string]string)
	}
	return &snap, m, nil
}

func decodeManifest(br *bufio.Reader) (*Manifest, error) {
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(bytes.TrimSpace(line), &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func countEntities(s *gamedb.Snapshot) int {
	n := 0
	for k := range s.Entries {
		if strings.HasPrefix(k, "entity/") && k != "entity/"+gamedb.VoidID {
			n++
		}
	}
	return n
}
