package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/segment"
)

// BenchmarkBuild measures a full build for corpora of increasing size.
func BenchmarkBuild(b *testing.B) {
	for _, size := range []int{50, 500, 2000} {
		records := syntheticCorpus(size, 130)
		b.Run(fmt.Sprintf("diseases_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := index.Build(records, index.BuildOptions{ID: 1}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBuildComboCap shows the cost of the combination pass with and
// without a per-disease symptom cap.
func BenchmarkBuildComboCap(b *testing.B) {
	records := syntheticCorpus(500, 130)
	for _, maxCombo := range []int{0, 8, 4} {
		b.Run(fmt.Sprintf("cap_%d", maxCombo), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := index.Build(records, index.BuildOptions{ID: 1, MaxComboSymptoms: maxCombo}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSnapshotSave(b *testing.B) {
	idx, err := index.Build(syntheticCorpus(500, 130), index.BuildOptions{ID: 1})
	if err != nil {
		b.Fatal(err)
	}
	prefix := filepath.Join(b.TempDir(), "bench")
	w := segment.NewWriter()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.Save(prefix, idx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSnapshotLoad(b *testing.B) {
	idx, err := index.Build(syntheticCorpus(500, 130), index.BuildOptions{ID: 1})
	if err != nil {
		b.Fatal(err)
	}
	prefix := filepath.Join(b.TempDir(), "bench")
	if err := segment.NewWriter().Save(prefix, idx); err != nil {
		b.Fatal(err)
	}
	r := segment.NewReader()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.Load(prefix); err != nil {
			b.Fatal(err)
		}
	}
}
