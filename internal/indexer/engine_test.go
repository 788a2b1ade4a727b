package indexer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
)

var records = []corpus.Record{
	{Disease: "flu", Symptoms: []string{"fever", "cough", "fatigue"}},
	{Disease: "cold", Symptoms: []string{"cough", "runny nose", "sneezing"}},
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(config.IndexerConfig{
		DataDir:        filepath.Join(t.TempDir(), "index"),
		SnapshotPrefix: "medical_rag",
	}, opts...)
	require.NoError(t, err)
	return e
}

func TestNewEngineCreatesDataDir(t *testing.T) {
	e := newTestEngine(t)
	assert.DirExists(t, filepath.Dir(e.SnapshotPrefix()))
	assert.Nil(t, e.Current())
}

func TestNewEngineRejectsNegativeCap(t *testing.T) {
	_, err := NewEngine(config.IndexerConfig{MaxComboSymptoms: -2})
	assert.Error(t, err)
}

func TestBuildInstallsIndex(t *testing.T) {
	e := newTestEngine(t)
	idx, err := e.Build(records)
	require.NoError(t, err)

	assert.Same(t, idx, e.Current())
	stats, err := e.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDiseases)
}

func TestBuildFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Disease,Symptom_1,Symptom_2\n"+
			"Flu, fever ,cough\n"+
			",headache,\n",
	), 0644))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newTestEngine(t, WithMetrics(m))
	idx, err := e.BuildFromCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"cough", "fever"}, idx.DiseaseSymptoms("flu"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusRowsTotal.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusRowsTotal.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexEntries.WithLabelValues("diseases")))
}

func TestStatsBeforeBuild(t *testing.T) {
	_, err := newTestEngine(t).Stats()
	assert.ErrorIs(t, err, apperrors.ErrIndexNotBuilt)
}

func TestSaveBeforeBuild(t *testing.T) {
	assert.ErrorIs(t, newTestEngine(t).Save(""), apperrors.ErrIndexNotBuilt)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	built, err := e.Build(records)
	require.NoError(t, err)
	require.NoError(t, e.Save(""))
	assert.True(t, segment.Exists(e.SnapshotPrefix()))

	other := newTestEngine(t)
	loaded, err := other.Load(e.SnapshotPrefix())
	require.NoError(t, err)
	assert.Equal(t, built.Export(), loaded.Export())
	assert.Same(t, loaded, other.Current())
}

func TestFailedLoadKeepsInstalledIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newTestEngine(t, WithMetrics(m))
	built, err := e.Build(records)
	require.NoError(t, err)

	_, err = e.Load(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
	assert.Same(t, built, e.Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOpsTotal.WithLabelValues("load", "not_found")))

	require.NoError(t, e.Save(""))
	path := segment.ArtifactPath(e.SnapshotPrefix(), built.ID(), segment.KindDiseaseVectors)
	require.NoError(t, os.WriteFile(path, []byte("garbage that is long enough to hold a header"), 0644))

	_, err = e.Load("")
	assert.ErrorIs(t, err, apperrors.ErrSnapshotCorrupt)
	assert.Same(t, built, e.Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotOpsTotal.WithLabelValues("load", "corrupt")))
}

func TestReloadSkipsInstalledSnapshot(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Build(records)
	require.NoError(t, err)
	require.NoError(t, e.Save(""))

	first, changed, err := e.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, first, e.Current())

	other := newTestEngine(t)
	_, changed, err = other.Reload()
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
	assert.False(t, changed)
}

func TestSwapNotifiesListeners(t *testing.T) {
	e := newTestEngine(t)
	var got [][2]*index.Index
	e.OnSwap(func(prev, next *index.Index) {
		got = append(got, [2]*index.Index{prev, next})
	})

	a, err := e.Build(records)
	require.NoError(t, err)
	b, err := e.Build(records[:1])
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Nil(t, got[0][0])
	assert.Same(t, a, got[0][1])
	assert.Same(t, a, got[1][0])
	assert.Same(t, b, got[1][1])

	assert.Same(t, b, e.Swap(nil))
	assert.Len(t, got, 2)
}

func TestConcurrentReadsDuringSwap(t *testing.T) {
	e := newTestEngine(t)
	first, err := e.Build(records)
	require.NoError(t, err)
	second, err := index.Build(records[:1], index.BuildOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				idx := e.Current()
				if idx != first && idx != second {
					t.Errorf("observed unexpected index %p", idx)
					return
				}
				_ = idx.Summary()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			e.Swap(second)
		} else {
			e.Swap(first)
		}
	}
	wg.Wait()
}

func TestNewSnapshotEvent(t *testing.T) {
	e := newTestEngine(t)
	idx, err := e.Build(records)
	require.NoError(t, err)

	ev := NewSnapshotEvent(e.SnapshotPrefix(), idx)
	assert.Equal(t, idx.ID(), ev.SnapshotID)
	assert.Equal(t, e.SnapshotPrefix(), ev.Prefix)
	assert.Equal(t, 2, ev.Summary.TotalDiseases)
	assert.False(t, ev.CreatedAt.IsZero())
}
