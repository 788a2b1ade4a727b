// Package indexer owns the installed symptom index. The Engine builds an
// index from a corpus, saves and loads named snapshots, and swaps the
// installed index atomically so readers never observe a partial install.
package indexer

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symptom-Search-Platform/pkg/metrics"
)

// SwapListener is called after a new index is installed. prev is nil on the
// first install. Listeners run synchronously and must not call Swap.
type SwapListener func(prev, next *index.Index)

type Option func(*Engine)

// WithMetrics records build, snapshot and index-size metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCorpusOptions sets the column layout used by BuildFromCSV.
func WithCorpusOptions(opts corpus.Options) Option {
	return func(e *Engine) { e.corpusOpts = opts }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l.With("component", "indexer") }
}

type Engine struct {
	current    atomic.Pointer[index.Index]
	cfg        config.IndexerConfig
	corpusOpts corpus.Options
	writer     *segment.Writer
	reader     *segment.Reader
	metrics    *metrics.Metrics
	logger     *slog.Logger

	installMu sync.Mutex
	listeners []SwapListener
}

func NewEngine(cfg config.IndexerConfig, opts ...Option) (*Engine, error) {
	if cfg.MaxComboSymptoms < 0 {
		return nil, fmt.Errorf("max combo symptoms must be >= 0, got %d", cfg.MaxComboSymptoms)
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
	}
	e := &Engine{
		cfg:        cfg,
		corpusOpts: corpus.DefaultOptions(),
		writer:     segment.NewWriter(),
		reader:     segment.NewReader(),
		logger:     slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Build indexes records and installs the result.
func (e *Engine) Build(records []corpus.Record) (*index.Index, error) {
	start := time.Now()
	idx, err := index.Build(records, index.BuildOptions{
		MaxComboSymptoms: e.cfg.MaxComboSymptoms,
		Logger:           e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	}
	summary := idx.Summary()
	e.logger.Info("index built",
		"snapshot_id", idx.ID(),
		"diseases", summary.TotalDiseases,
		"symptoms", summary.TotalSymptoms,
		"combinations", summary.TotalCombinations,
		"duration_ms", elapsed.Milliseconds(),
	)
	e.Swap(idx)
	return idx, nil
}

// BuildFromCSV loads the corpus at path and builds from it.
func (e *Engine) BuildFromCSV(path string) (*index.Index, error) {
	records, stats, err := corpus.NewLoader(e.corpusOpts).LoadFile(path)
	if err != nil {
		return nil, err
	}
	e.RecordCorpusStats(stats)
	return e.Build(records)
}

// RecordCorpusStats counts the rows of a corpus load.
func (e *Engine) RecordCorpusStats(stats corpus.LoadStats) {
	if e.metrics != nil {
		e.metrics.CorpusRowsTotal.WithLabelValues("kept").Add(float64(stats.Records))
		e.metrics.CorpusRowsTotal.WithLabelValues("skipped").Add(float64(stats.RowsSkipped))
	}
}

// Save writes the installed index under prefix. An empty prefix selects the
// configured snapshot location.
func (e *Engine) Save(prefix string) error {
	idx := e.current.Load()
	if idx == nil {
		return apperrors.ErrIndexNotBuilt
	}
	prefix = e.resolvePrefix(prefix)
	if err := e.writer.Save(prefix, idx); err != nil {
		e.countSnapshotOp("save", "error")
		return fmt.Errorf("saving snapshot %s: %w", prefix, err)
	}
	e.countSnapshotOp("save", "ok")
	return nil
}

// Load reads the snapshot under prefix and installs it. On any failure the
// installed index is left untouched.
func (e *Engine) Load(prefix string) (*index.Index, error) {
	idx, err := e.read(prefix)
	if err != nil {
		return nil, err
	}
	e.Swap(idx)
	return idx, nil
}

// Reload loads the configured snapshot. When the snapshot on disk is the
// one already installed, nothing is swapped and changed is false.
func (e *Engine) Reload() (idx *index.Index, changed bool, err error) {
	idx, err = e.read("")
	if err != nil {
		return nil, false, err
	}
	if cur := e.current.Load(); cur != nil && cur.ID() == idx.ID() {
		e.logger.Debug("snapshot already installed", "snapshot_id", idx.ID())
		return cur, false, nil
	}
	e.Swap(idx)
	return idx, true, nil
}

func (e *Engine) read(prefix string) (*index.Index, error) {
	prefix = e.resolvePrefix(prefix)
	idx, err := e.reader.Load(prefix)
	if err != nil {
		status := "corrupt"
		if apperrors.Is(err, apperrors.ErrSnapshotNotFound) {
			status = "not_found"
		}
		e.countSnapshotOp("load", status)
		e.logger.Warn("snapshot load failed", "prefix", prefix, "error", err)
		return nil, fmt.Errorf("loading snapshot %s: %w", prefix, err)
	}
	e.countSnapshotOp("load", "ok")
	return idx, nil
}

// Swap installs idx, notifies listeners and returns the previous index.
// Swapping in nil is ignored.
func (e *Engine) Swap(idx *index.Index) *index.Index {
	if idx == nil {
		return e.current.Load()
	}
	e.installMu.Lock()
	defer e.installMu.Unlock()
	prev := e.current.Swap(idx)
	e.updateGauges(idx)
	for _, fn := range e.listeners {
		fn(prev, idx)
	}
	prevID := int64(0)
	if prev != nil {
		prevID = prev.ID()
	}
	e.logger.Info("index installed", "snapshot_id", idx.ID(), "previous_snapshot_id", prevID)
	return prev
}

// Current returns the installed index, or nil before the first install.
func (e *Engine) Current() *index.Index {
	return e.current.Load()
}

// Stats summarizes the installed index.
func (e *Engine) Stats() (index.Summary, error) {
	idx := e.current.Load()
	if idx == nil {
		return index.Summary{}, apperrors.ErrIndexNotBuilt
	}
	return idx.Summary(), nil
}

// OnSwap registers fn to run after every install.
func (e *Engine) OnSwap(fn SwapListener) {
	e.installMu.Lock()
	defer e.installMu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// SnapshotPrefix is the configured snapshot location.
func (e *Engine) SnapshotPrefix() string {
	return e.cfg.PrefixPath()
}

func (e *Engine) resolvePrefix(prefix string) string {
	if prefix == "" {
		return e.cfg.PrefixPath()
	}
	return prefix
}

func (e *Engine) countSnapshotOp(op, status string) {
	if e.metrics != nil {
		e.metrics.SnapshotOpsTotal.WithLabelValues(op, status).Inc()
	}
}

func (e *Engine) updateGauges(idx *index.Index) {
	if e.metrics == nil {
		return
	}
	s := idx.Summary()
	e.metrics.IndexEntries.WithLabelValues("diseases").Set(float64(s.TotalDiseases))
	e.metrics.IndexEntries.WithLabelValues("symptoms").Set(float64(s.TotalSymptoms))
	e.metrics.IndexEntries.WithLabelValues("combinations").Set(float64(s.TotalCombinations))
	e.metrics.IndexEntries.WithLabelValues("vocabulary").Set(float64(s.VocabularySize))
}
