// Package segment persists an index snapshot as a set of .spdx artifacts
// plus a JSON manifest. Every artifact carries a fixed header, a JSON payload
// and a CRC32 footer. Artifact file names include the snapshot id, so a save
// never touches the files of the snapshot it replaces; renaming the manifest
// into place is the single commit point.
package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	MagicBytes    uint32 = 0x53504458 // "SPDX"
	FormatVersion uint32 = 3
	HeaderSize    int    = 32
	FooterSize    int    = 8
)

// Kind names the index component an artifact holds.
type Kind uint32

const (
	KindDiseaseSymptoms Kind = iota + 1
	KindSymptomDiseases
	KindSymptomCombinations
	KindVectorizer
	KindDiseaseVectors
	KindDiseaseNames
	KindFrequencies
)

// Kinds lists every artifact in write order.
var Kinds = []Kind{
	KindDiseaseSymptoms,
	KindSymptomDiseases,
	KindSymptomCombinations,
	KindVectorizer,
	KindDiseaseVectors,
	KindDiseaseNames,
	KindFrequencies,
}

var kindNames = map[Kind]string{
	KindDiseaseSymptoms:     "disease_symptoms",
	KindSymptomDiseases:     "symptom_diseases",
	KindSymptomCombinations: "symptom_combinations",
	KindVectorizer:          "vectorizer",
	KindDiseaseVectors:      "disease_vectors",
	KindDiseaseNames:        "disease_names",
	KindFrequencies:         "frequencies",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// ArtifactPath is the file holding kind for snapshot snapshotID at prefix.
func ArtifactPath(prefix string, snapshotID int64, kind Kind) string {
	return fmt.Sprintf("%s_%d_%s.spdx", prefix, snapshotID, kind)
}

// ManifestPath is the manifest file for the snapshot at prefix.
func ManifestPath(prefix string) string {
	return prefix + "_manifest.json"
}

// Header is the 32-byte header written at the start of every artifact.
//
//	[0:4]   magic
//	[4:8]   format version
//	[8:12]  kind
//	[12:16] reserved
//	[16:24] snapshot id
//	[24:32] payload length
type Header struct {
	Magic      uint32
	Version    uint32
	Kind       Kind
	SnapshotID int64
	PayloadLen uint64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Kind))
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.SnapshotID))
	binary.LittleEndian.PutUint64(b[24:32], h.PayloadLen)
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		Kind:       Kind(binary.LittleEndian.Uint32(b[8:12])),
		SnapshotID: int64(binary.LittleEndian.Uint64(b[16:24])),
		PayloadLen: binary.LittleEndian.Uint64(b[24:32]),
	}
}

// footer is the payload checksum followed by the header checksum.
func footer(header, payload []byte) []byte {
	b := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(b[0:4], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(b[4:8], crc32.ChecksumIEEE(header))
	return b
}

// Manifest lists the artifacts of one snapshot. It is written after every
// artifact is in place. File names are relative to the prefix directory.
type Manifest struct {
	SnapshotID    int64         `json:"snapshot_id"`
	FormatVersion uint32        `json:"format_version"`
	CreatedAt     int64         `json:"created_at"`
	Artifacts     []ArtifactRef `json:"artifacts"`
}

// ArtifactRef describes one artifact file in a manifest.
type ArtifactRef struct {
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Size     int64  `json:"size"`
	Checksum uint32 `json:"crc32"`
}

// artifact returns the entry for kind, if listed.
func (m Manifest) artifact(kind Kind) (ArtifactRef, bool) {
	for _, ref := range m.Artifacts {
		if ref.Kind == kind.String() {
			return ref, true
		}
	}
	return ArtifactRef{}, false
}
