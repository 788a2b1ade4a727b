package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
)

// Writer saves index snapshots.
type Writer struct {
	logger *slog.Logger
}

func NewWriter() *Writer {
	return &Writer{logger: slog.Default().With("component", "segment-writer")}
}

// Save writes every artifact of idx under prefix, then commits them by
// renaming the manifest into place. Until that rename the previous snapshot
// at prefix stays loadable; a failed save removes the artifacts it wrote.
// After the commit the previous snapshot's artifacts are pruned.
func (w *Writer) Save(prefix string, idx *index.Index) error {
	if idx == nil {
		return fmt.Errorf("cannot save nil index")
	}
	if dir := filepath.Dir(prefix); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	snap := idx.Export()
	payloads := map[Kind]any{
		KindDiseaseSymptoms:     snap.Diseases,
		KindSymptomDiseases:     snap.Symptoms,
		KindSymptomCombinations: snap.Combinations,
		KindVectorizer:          snap.Vectorizer,
		KindDiseaseVectors:      snap.Vectors,
		KindDiseaseNames:        snap.VectorNames,
		KindFrequencies:         snap.Stats,
	}

	// A manifest that cannot be read has nothing worth protecting or pruning.
	prev, prevErr := readManifest(ManifestPath(prefix))
	hasPrev := prevErr == nil

	manifest := Manifest{
		SnapshotID:    snap.ID,
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().Unix(),
		Artifacts:     make([]ArtifactRef, 0, len(Kinds)),
	}
	for _, kind := range Kinds {
		ref, err := writeArtifact(prefix, kind, snap.ID, payloads[kind])
		if err != nil {
			if !hasPrev || prev.SnapshotID != snap.ID {
				w.remove(prefix, manifest.Artifacts)
			}
			return fmt.Errorf("writing %s artifact: %w", kind, err)
		}
		manifest.Artifacts = append(manifest.Artifacts, ref)
		w.logger.Debug("artifact written", "kind", kind.String(), "file", ref.File, "size", ref.Size)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := writeFileAtomic(ManifestPath(prefix), data); err != nil {
		if !hasPrev || prev.SnapshotID != snap.ID {
			w.remove(prefix, manifest.Artifacts)
		}
		return fmt.Errorf("writing manifest: %w", err)
	}
	if hasPrev && prev.SnapshotID != snap.ID {
		w.remove(prefix, prev.Artifacts)
	}
	w.logger.Info("snapshot saved",
		"prefix", prefix,
		"snapshot_id", snap.ID,
		"artifacts", len(manifest.Artifacts),
	)
	return nil
}

// remove deletes the listed artifacts next to prefix. Failures are logged
// only: a leftover file is never referenced by the committed manifest.
func (w *Writer) remove(prefix string, refs []ArtifactRef) {
	dir := filepath.Dir(prefix)
	for _, ref := range refs {
		if !validFileName(ref.File) {
			continue
		}
		path := filepath.Join(dir, ref.File)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to remove stale artifact", "file", path, "error", err)
		}
	}
}

func writeArtifact(prefix string, kind Kind, snapshotID int64, v any) (ArtifactRef, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("marshaling payload: %w", err)
	}
	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		Kind:       kind,
		SnapshotID: snapshotID,
		PayloadLen: uint64(len(payload)),
	}.encode()

	buf := make([]byte, 0, HeaderSize+len(payload)+FooterSize)
	buf = append(buf, header...)
	buf = append(buf, payload...)
	buf = append(buf, footer(header, payload)...)

	path := ArtifactPath(prefix, snapshotID, kind)
	if err := writeFileAtomic(path, buf); err != nil {
		return ArtifactRef{}, err
	}
	return ArtifactRef{
		Kind:     kind.String(),
		File:     filepath.Base(path),
		Size:     int64(len(buf)),
		Checksum: crc32.ChecksumIEEE(payload),
	}, nil
}

// writeFileAtomic writes data to path.tmp, syncs it and renames it over
// path.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
