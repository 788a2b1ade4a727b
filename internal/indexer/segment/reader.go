package segment

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
)

// Reader loads index snapshots.
type Reader struct {
	logger *slog.Logger
}

func NewReader() *Reader {
	return &Reader{logger: slog.Default().With("component", "segment-reader")}
}

// Load reads the manifest and every artifact under prefix and assembles a
// new index. It returns an index only when all of them are present and
// valid: a missing file yields ErrSnapshotNotFound, anything else wrong
// yields ErrSnapshotCorrupt.
func (r *Reader) Load(prefix string) (*index.Index, error) {
	manifest, err := readManifest(ManifestPath(prefix))
	if err != nil {
		return nil, err
	}

	snap := &index.Snapshot{ID: manifest.SnapshotID}
	targets := map[Kind]any{
		KindDiseaseSymptoms:     &snap.Diseases,
		KindSymptomDiseases:     &snap.Symptoms,
		KindSymptomCombinations: &snap.Combinations,
		KindVectorizer:          &snap.Vectorizer,
		KindDiseaseVectors:      &snap.Vectors,
		KindDiseaseNames:        &snap.VectorNames,
		KindFrequencies:         &snap.Stats,
	}
	dir := filepath.Dir(prefix)
	for _, kind := range Kinds {
		ref, ok := manifest.artifact(kind)
		if !ok || !validFileName(ref.File) {
			return nil, fmt.Errorf("%w: manifest %s has no valid %s artifact",
				apperrors.ErrSnapshotCorrupt, ManifestPath(prefix), kind)
		}
		if err := readArtifact(filepath.Join(dir, ref.File), kind, manifest.SnapshotID, targets[kind]); err != nil {
			return nil, err
		}
	}

	idx, err := index.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	r.logger.Info("snapshot loaded",
		"prefix", prefix,
		"snapshot_id", manifest.SnapshotID,
		"diseases", len(snap.Diseases),
		"symptoms", len(snap.Symptoms),
	)
	return idx, nil
}

// validFileName rejects manifest entries that would resolve outside the
// prefix directory.
func validFileName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// Exists reports whether a manifest is present at prefix.
func Exists(prefix string) bool {
	_, err := os.Stat(ManifestPath(prefix))
	return err == nil
}

func readManifest(path string) (Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: parsing manifest %s: %v", apperrors.ErrSnapshotCorrupt, path, err)
	}
	if m.FormatVersion != FormatVersion {
		return Manifest{}, fmt.Errorf("%w: manifest %s has format version %d, want %d",
			apperrors.ErrSnapshotCorrupt, path, m.FormatVersion, FormatVersion)
	}
	return m, nil
}

func readArtifact(path string, kind Kind, snapshotID int64, v any) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", apperrors.ErrSnapshotCorrupt, path, fmt.Sprintf(format, args...))
	}
	if len(data) < HeaderSize+FooterSize {
		return corrupt("file too short (%d bytes)", len(data))
	}
	headerBytes := data[:HeaderSize]
	h := decodeHeader(headerBytes)
	switch {
	case h.Magic != MagicBytes:
		return corrupt("bad magic bytes %x", h.Magic)
	case h.Version != FormatVersion:
		return corrupt("format version %d, want %d", h.Version, FormatVersion)
	case h.Kind != kind:
		return corrupt("holds %s, want %s", h.Kind, kind)
	case h.SnapshotID != snapshotID:
		return corrupt("snapshot id %d, manifest has %d", h.SnapshotID, snapshotID)
	case h.PayloadLen != uint64(len(data)-HeaderSize-FooterSize):
		return corrupt("payload length %d does not match file size %d", h.PayloadLen, len(data))
	}
	payload := data[HeaderSize : len(data)-FooterSize]
	foot := data[len(data)-FooterSize:]
	if got, want := crc32.ChecksumIEEE(payload), binary.LittleEndian.Uint32(foot[0:4]); got != want {
		return corrupt("payload checksum %08x, want %08x", got, want)
	}
	if got, want := crc32.ChecksumIEEE(headerBytes), binary.LittleEndian.Uint32(foot[4:8]); got != want {
		return corrupt("header checksum %08x, want %08x", got, want)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return corrupt("decoding payload: %v", err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrSnapshotCorrupt, path, err)
	}
	return data, nil
}
